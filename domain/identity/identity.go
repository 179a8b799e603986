// Package identity maps authenticated principals to account identifiers and
// issues the capability tokens that authorize delegated calls. Tokens are
// plain values handed to privileged operations; nothing is looked up from
// ambient state.
package identity

import (
	"sync"

	"econia/domain/errs"
)

// AccountID identifies a user account.
type AccountID uint64

// NoCustodian is the custodian id of a self-custodied position.
const NoCustodian uint64 = 0

// Signer is an authenticated principal. Authentication happens in the
// transport; by the time a Signer exists its account is trusted.
type Signer struct {
	account AccountID
}

// NewSigner returns the Signer for an authenticated account.
func NewSigner(account AccountID) Signer {
	return Signer{account: account}
}

// AccountID resolves the signer to its account.
func (s Signer) AccountID() AccountID {
	return s.account
}

// CustodianCapability authorizes its holder to act on positions delegated to
// custodian ID.
type CustodianCapability struct {
	id uint64
}

// ID returns the custodian id carried by the capability.
func (c CustodianCapability) ID() uint64 { return c.id }

// UnderwriterCapability authorizes its holder to underwrite markets for
// generic (non-coin) assets.
type UnderwriterCapability struct {
	id uint64
}

// ID returns the underwriter id carried by the capability.
func (c UnderwriterCapability) ID() uint64 { return c.id }

// Actor is the (account, custodian) pair a call operates on.
type Actor struct {
	Account     AccountID
	CustodianID uint64
}

// SelfCustody returns the actor for a signer trading its own position.
func SelfCustody(s Signer) Actor {
	return Actor{Account: s.AccountID(), CustodianID: NoCustodian}
}

// Authority issues and validates capabilities. Ids are allocated
// sequentially starting at 1, so replaying registrations in order reproduces
// the same ids.
type Authority struct {
	mtx          sync.Mutex
	custodians   uint64
	underwriters uint64
}

// NewAuthority creates an Authority with no registered capabilities.
func NewAuthority() *Authority {
	return &Authority{}
}

// RegisterCustodian issues a new custodian capability.
func (a *Authority) RegisterCustodian() CustodianCapability {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.custodians++
	return CustodianCapability{id: a.custodians}
}

// RegisterUnderwriter issues a new underwriter capability.
func (a *Authority) RegisterUnderwriter() UnderwriterCapability {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.underwriters++
	return UnderwriterCapability{id: a.underwriters}
}

// Custodian returns the capability for a previously issued id.
func (a *Authority) Custodian(id uint64) (CustodianCapability, error) {
	c := CustodianCapability{id: id}
	if err := a.ValidateCustodian(c); err != nil {
		return CustodianCapability{}, err
	}
	return c, nil
}

// Underwriter returns the capability for a previously issued id.
func (a *Authority) Underwriter(id uint64) (UnderwriterCapability, error) {
	c := UnderwriterCapability{id: id}
	if err := a.ValidateUnderwriter(c); err != nil {
		return UnderwriterCapability{}, err
	}
	return c, nil
}

// ValidateCustodian checks that c was issued by this Authority.
func (a *Authority) ValidateCustodian(c CustodianCapability) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if c.id == NoCustodian || c.id > a.custodians {
		return errs.New(errs.ErrInvalidCapability, "custodian %d", c.id)
	}
	return nil
}

// ValidateUnderwriter checks that c was issued by this Authority.
func (a *Authority) ValidateUnderwriter(c UnderwriterCapability) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if c.id == 0 || c.id > a.underwriters {
		return errs.New(errs.ErrInvalidCapability, "underwriter %d", c.id)
	}
	return nil
}

// Delegated returns the actor for a custodian acting on user's behalf.
func (a *Authority) Delegated(user AccountID, c CustodianCapability) (Actor, error) {
	if err := a.ValidateCustodian(c); err != nil {
		return Actor{}, err
	}
	return Actor{Account: user, CustodianID: c.id}, nil
}

// Counts returns how many custodian and underwriter capabilities have been
// issued.
func (a *Authority) Counts() (custodians, underwriters uint64) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.custodians, a.underwriters
}

// Restore resumes id allocation after a snapshot. Counts never go
// backwards.
func (a *Authority) Restore(custodians, underwriters uint64) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if custodians < a.custodians || underwriters < a.underwriters {
		return errs.New(errs.ErrInvariant, "restore to %d/%d below issued %d/%d", custodians, underwriters, a.custodians, a.underwriters)
	}
	a.custodians, a.underwriters = custodians, underwriters
	return nil
}
