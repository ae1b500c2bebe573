package identity

import (
	"context"
	"testing"

	"bizrent_ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	landlord, err := New(7, models.RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, uint(7), landlord.UserID())
	assert.Equal(t, models.RoleLandlord, landlord.Role())

	tenant, err := New(9, models.RoleTenant)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenant, tenant.Role())

	_, err = New(1, models.Role("ADMIN"))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = New(0, models.RoleTenant)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequire(t *testing.T) {
	landlord, _ := New(1, models.RoleLandlord)
	tenant, _ := New(2, models.RoleTenant)

	tests := []struct {
		name    string
		session Session
		cap     Capability
		wantErr error
	}{
		{name: "nil session", session: nil, cap: ViewInvoices, wantErr: ErrUnauthenticated},
		{name: "landlord reviews", session: landlord, cap: ReviewPayments},
		{name: "landlord cannot submit", session: landlord, cap: SubmitPayments, wantErr: ErrForbidden},
		{name: "tenant submits", session: tenant, cap: SubmitPayments},
		{name: "tenant cannot review", session: tenant, cap: ReviewPayments, wantErr: ErrForbidden},
		{name: "tenant cannot generate", session: tenant, cap: GenerateInvoices, wantErr: ErrForbidden},
		{name: "system sweeps", session: System(), cap: ManageInvoices},
		{name: "system cannot review", session: System(), cap: ReviewPayments, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(tt.session, tt.cap)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s, _ := New(3, models.RoleTenant)
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Equal(t, uint(3), got.UserID())
	assert.True(t, IsSystem(System()))
	assert.False(t, IsSystem(s))
}
