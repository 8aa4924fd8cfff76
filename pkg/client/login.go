package client

import (
	"context"
	"errors"
	"time"

	"github.com/vango-dev/imclient/pkg/network"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

// Session describes the login currently in effect.
type Session struct {
	Account    int64
	Nick       string
	SessionKey []byte
	ServerTime time.Time
	Resumed    bool
}

// negotiate logs in on a fresh transport. Refused credentials and an
// expired session close the session; anything else is retried.
func (c *Client) negotiate(ctx context.Context, r network.Requester, resume bool) error {
	req := &protocol.LoginRequest{
		Account:    c.config.Account,
		Token:      c.config.Token,
		Version:    protocol.ProtocolVersion,
		ClientTime: time.Now().UnixMilli(),
		Resume:     resume,
	}
	f, err := r.SendAndExpect(ctx, protocol.CmdLogin, tars.Marshal(req))
	if err != nil {
		var rejected *network.RejectedError
		if errors.As(err, &rejected) && !rejected.Retryable() {
			return network.Unrecoverable(err)
		}
		return err
	}

	var resp protocol.LoginResponse
	if err := tars.Unmarshal(f.Body, &resp); err != nil {
		return network.Unrecoverable(err)
	}
	c.session.Store(&Session{
		Account:    c.config.Account,
		Nick:       resp.Nick,
		SessionKey: resp.SessionKey,
		ServerTime: time.UnixMilli(resp.ServerTime),
		Resumed:    resume,
	})
	c.logger.Info("logged in", "account", c.config.Account, "nick", resp.Nick, "resume", resume)
	return nil
}

// load fetches the contact list. On resume a failure keeps the previous
// list instead of closing the session.
func (c *Client) load(ctx context.Context, r network.Requester, resume bool) error {
	if !c.config.LoadContacts {
		return nil
	}
	f, err := r.SendAndExpect(ctx, protocol.CmdLoadContacts, tars.Marshal(&ContactsRequest{Account: c.config.Account}))
	if err == nil {
		var contacts Contacts
		if err = tars.Unmarshal(f.Body, &contacts); err == nil {
			c.contacts.Store(&contacts)
			c.logger.Debug("contacts loaded", "friends", len(contacts.Friends), "groups", len(contacts.Groups))
			return nil
		}
	}
	if resume && c.contacts.Load() != nil {
		c.logger.Warn("contact reload failed, keeping previous list", "error", err)
		return nil
	}
	return err
}
