package wire

import "fmt"

// Protocol version range spoken by this client.
const (
	MinProtocolVersion = 1
	MaxProtocolVersion = 3
)

// ConnectParams is the params object of the "connect" request, the first
// frame sent after the socket opens.
type ConnectParams struct {
	MinProtocol int              `json:"minProtocol"`
	MaxProtocol int              `json:"maxProtocol"`
	Client      ClientInfo       `json:"client"`
	Auth        *AuthCredentials `json:"auth,omitempty"`
	Role        string           `json:"role"`
	Scopes      []string         `json:"scopes"`
	Device      DeviceAssertion  `json:"device"`
}

// Validate checks the connect params before they are put on the wire.
func (p *ConnectParams) Validate() error {
	if p.MinProtocol <= 0 || p.MaxProtocol < p.MinProtocol {
		return fmt.Errorf("invalid protocol range %d..%d", p.MinProtocol, p.MaxProtocol)
	}
	if p.Client.ID == "" {
		return fmt.Errorf("connect params missing client id")
	}
	if p.Role == "" {
		return fmt.Errorf("connect params missing role")
	}
	if p.Device.ID == "" || p.Device.Signature == "" {
		return fmt.Errorf("connect params missing device assertion")
	}
	return nil
}

// ClientInfo identifies the connecting application.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"`
	InstanceID  string `json:"instanceId"`
}

// AuthCredentials carries the optional bearer token or shared password.
// Absence of both is legal: the device signature alone may authenticate.
type AuthCredentials struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// DeviceAssertion is the signed proof of device identity. Signature and
// PublicKey are base64url without padding; SignedAt is epoch millis.
type DeviceAssertion struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	SignedAt  int64  `json:"signedAt"`
	Nonce     string `json:"nonce,omitempty"`
}
