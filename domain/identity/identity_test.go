package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"econia/domain/errs"
)

func TestSelfCustody(t *testing.T) {
	actor := SelfCustody(NewSigner(42))
	require.Equal(t, Actor{Account: 42, CustodianID: NoCustodian}, actor)
}

func TestCustodianCapabilities(t *testing.T) {
	a := NewAuthority()

	first := a.RegisterCustodian()
	second := a.RegisterCustodian()
	require.Equal(t, uint64(1), first.ID())
	require.Equal(t, uint64(2), second.ID())

	require.NoError(t, a.ValidateCustodian(second))
	require.ErrorIs(t, a.ValidateCustodian(CustodianCapability{}), errs.ErrInvalidCapability)
	require.ErrorIs(t, a.ValidateCustodian(CustodianCapability{id: 3}), errs.ErrInvalidCapability)

	actor, err := a.Delegated(7, first)
	require.NoError(t, err)
	require.Equal(t, Actor{Account: 7, CustodianID: 1}, actor)

	restored, err := a.Custodian(2)
	require.NoError(t, err)
	require.Equal(t, second, restored)
}

func TestUnderwriterCapabilities(t *testing.T) {
	a := NewAuthority()
	_, err := a.Underwriter(1)
	require.ErrorIs(t, err, errs.ErrInvalidCapability)

	uw := a.RegisterUnderwriter()
	require.NoError(t, a.ValidateUnderwriter(uw))
	got, err := a.Underwriter(uw.ID())
	require.NoError(t, err)
	require.Equal(t, uw, got)
}

func TestAuthorityRestore(t *testing.T) {
	a := NewAuthority()
	a.RegisterCustodian()
	require.NoError(t, a.Restore(4, 2))
	c, u := a.Counts()
	require.Equal(t, uint64(4), c)
	require.Equal(t, uint64(2), u)
	require.Equal(t, uint64(5), a.RegisterCustodian().ID())
	require.ErrorIs(t, a.Restore(1, 2), errs.ErrInvariant)
}
