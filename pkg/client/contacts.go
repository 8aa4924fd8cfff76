package client

import (
	"github.com/vango-dev/imclient/pkg/tars"
)

// ContactsRequest is the body of protocol.CmdLoadContacts.
type ContactsRequest struct {
	Account int64
}

// EncodeTars implements tars.Struct.
func (r *ContactsRequest) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Account)
}

// DecodeTars implements tars.Struct.
func (r *ContactsRequest) DecodeTars(d *tars.Decoder) (err error) {
	r.Account, err = d.ReadInt64(0, true)
	return err
}

// Friend is one entry of the friend list.
type Friend struct {
	Account int64
	Nick    string
	Group   int32 // Friend group id
}

// EncodeTars implements tars.Struct.
func (f *Friend) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, f.Account)
	e.WriteString(1, f.Nick)
	e.WriteInt32(2, f.Group)
}

// DecodeTars implements tars.Struct.
func (f *Friend) DecodeTars(d *tars.Decoder) (err error) {
	if f.Account, err = d.ReadInt64(0, true); err != nil {
		return err
	}
	if f.Nick, err = d.ReadString(1, false); err != nil {
		return err
	}
	f.Group, err = d.ReadInt32(2, false)
	return err
}

// Group is a group the account belongs to.
type Group struct {
	ID   int64
	Name string
}

// EncodeTars implements tars.Struct.
func (g *Group) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, g.ID)
	e.WriteString(1, g.Name)
}

// DecodeTars implements tars.Struct.
func (g *Group) DecodeTars(d *tars.Decoder) (err error) {
	if g.ID, err = d.ReadInt64(0, true); err != nil {
		return err
	}
	g.Name, err = d.ReadString(1, false)
	return err
}

// Contacts is the friend and group list loaded after login.
type Contacts struct {
	Friends []*Friend
	Groups  []*Group
}

// EncodeTars implements tars.Struct.
func (c *Contacts) EncodeTars(e *tars.Encoder) {
	tars.WriteStructList(e, 0, c.Friends)
	tars.WriteStructList(e, 1, c.Groups)
}

// DecodeTars implements tars.Struct.
func (c *Contacts) DecodeTars(d *tars.Decoder) (err error) {
	if c.Friends, err = tars.ReadStructList(d, 0, false, func() *Friend { return &Friend{} }); err != nil {
		return err
	}
	c.Groups, err = tars.ReadStructList(d, 1, false, func() *Group { return &Group{} })
	return err
}

// Friend returns the friend with the given account.
func (c *Contacts) Friend(account int64) (*Friend, bool) {
	for _, f := range c.Friends {
		if f.Account == account {
			return f, true
		}
	}
	return nil, false
}
