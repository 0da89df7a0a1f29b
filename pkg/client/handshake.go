package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewire/gatewire-go/pkg/identity"
	"github.com/gatewire/gatewire-go/pkg/transport"
	"github.com/gatewire/gatewire-go/pkg/wire"
)

// handshake tracks one in-progress connect sequence. The read loop
// routes the challenge event and the connect response here by session
// and correlation id.
type handshake struct {
	sess      *transport.Session
	connectID string

	challengeCh chan string
	respCh      chan *wire.ResponseFrame
}

func newHandshake(sess *transport.Session) *handshake {
	return &handshake{
		sess:        sess,
		connectID:   uuid.New().String(),
		challengeCh: make(chan string, 1),
		respCh:      make(chan *wire.ResponseFrame, 1),
	}
}

// performHandshake runs one full connect sequence: dial, wait for the
// challenge, send the signed connect request, await its response. On any
// failure the session is closed before returning.
func (c *Client) performHandshake(ctx context.Context) (*transport.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	c.setState(StateConnecting, "dialing gateway")

	sess, err := c.dialer.Dial(ctx, c.cfg.GatewayURL, transport.Callbacks{
		OnMessage: c.onMessage,
		OnClosed:  c.onSessionClosed,
		OnError:   c.onSessionError,
	})
	if err != nil {
		c.setState(StateDisconnected, "dial failed")
		return nil, err
	}

	// The handshake must be routable before the first frame can arrive:
	// gateways emit connect.challenge immediately on accept, so delivery
	// stays off until c.hs is installed.
	hs := newHandshake(sess)
	c.mu.Lock()
	c.hs = hs
	c.mu.Unlock()
	sess.Start()

	// On failure the handshake is deregistered here. On success it stays
	// installed so routing holds until finishAttempt makes the session
	// current; finishAttempt clears it.
	fail := func(reason string) {
		c.mu.Lock()
		if c.hs == hs {
			c.hs = nil
		}
		c.mu.Unlock()
		sess.Close()
		c.setState(StateDisconnected, reason)
	}

	nonce, err := c.awaitChallenge(ctx, hs)
	if err != nil {
		fail("challenge wait failed")
		return nil, err
	}

	if err := c.sendConnect(hs, nonce); err != nil {
		fail("connect send failed")
		return nil, err
	}

	c.setState(StateHandshaking, "connect request sent")

	resp, err := c.awaitConnectResponse(ctx, hs)
	if err != nil {
		fail("handshake failed")
		return nil, err
	}

	c.storeConnectAck(resp.Payload)
	return sess, nil
}

// awaitChallenge waits for the gateway's connect.challenge event. A
// gateway that never sends one is treated as legacy after ChallengeWait:
// the connect request then carries a no-nonce assertion.
func (c *Client) awaitChallenge(ctx context.Context, hs *handshake) (string, error) {
	c.setState(StateAwaitingChallenge, "waiting for challenge")

	timer := time.NewTimer(c.cfg.ChallengeWait)
	defer timer.Stop()

	select {
	case nonce := <-hs.challengeCh:
		return nonce, nil
	case <-timer.C:
		// Legacy gateway.
		return "", nil
	case <-hs.sess.Done():
		return "", fmt.Errorf("connection closed before challenge: %w", ErrConnectionLost)
	case <-c.closedCh:
		return "", ErrClientClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// sendConnect signs the assertion and puts the connect request on the wire.
func (c *Client) sendConnect(hs *handshake, nonce string) error {
	assertion := c.signer.BuildAssertion(identity.AssertionInput{
		ClientID:   c.cfg.Client.ID,
		ClientMode: c.cfg.Client.Mode,
		Role:       c.cfg.Role,
		Scopes:     c.cfg.Scopes,
		Token:      c.cfg.Token,
		Nonce:      nonce,
	})

	params := wire.ConnectParams{
		MinProtocol: wire.MinProtocolVersion,
		MaxProtocol: wire.MaxProtocolVersion,
		Client: wire.ClientInfo{
			ID:          c.cfg.Client.ID,
			DisplayName: c.cfg.Client.DisplayName,
			Version:     c.cfg.Client.Version,
			Platform:    c.cfg.Client.Platform,
			Mode:        c.cfg.Client.Mode,
			InstanceID:  c.instanceID,
		},
		Role:   c.cfg.Role,
		Scopes: c.cfg.Scopes,
		Device: assertion,
	}
	if c.cfg.Token != "" || c.cfg.Password != "" {
		params.Auth = &wire.AuthCredentials{Token: c.cfg.Token, Password: c.cfg.Password}
	}
	if err := params.Validate(); err != nil {
		return err
	}

	raw, err := wire.MarshalParams(&params)
	if err != nil {
		return err
	}

	frame := &wire.RequestFrame{ID: hs.connectID, Method: wire.MethodConnect, Params: raw}
	return c.sendFrame(hs.sess, frame)
}

// awaitConnectResponse waits for the response matching the connect request.
func (c *Client) awaitConnectResponse(ctx context.Context, hs *handshake) (*wire.ResponseFrame, error) {
	select {
	case resp := <-hs.respCh:
		if err := resp.Err(); err != nil {
			return nil, fmt.Errorf("gateway rejected connect: %w", err)
		}
		return resp, nil
	case <-hs.sess.Done():
		return nil, fmt.Errorf("connection closed during handshake: %w", ErrConnectionLost)
	case <-c.closedCh:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
