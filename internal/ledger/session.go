package ledger

import "github.com/ethereum/go-ethereum/common"

// Session exposes the signing identity writes are sent from.
type Session interface {
	Account() (common.Address, bool)
}

// StaticSession is a session with a fixed account, or none at all.
type StaticSession struct {
	addr common.Address
	ok   bool
}

func NewStaticSession(addr common.Address) StaticSession {
	return StaticSession{addr: addr, ok: true}
}

// ReadOnly has no account; every write through it is Unauthenticated.
var ReadOnly = StaticSession{}

func (s StaticSession) Account() (common.Address, bool) {
	return s.addr, s.ok
}
