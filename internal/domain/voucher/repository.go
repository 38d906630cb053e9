package voucher

import "context"

// Repository loads vouchers and their redemption state. Lookups return
// ErrNotFound for unknown codes.
type Repository interface {
	// FindByCode resolves a code (case-insensitive) to its voucher with
	// linked offers hydrated, plus the redemption counts for the given
	// user. An empty userID yields ByUser == 0.
	FindByCode(ctx context.Context, code, userID string) (*Voucher, Redemptions, error)

	// RecordRedemption notes one completed order redeeming the voucher.
	RecordRedemption(ctx context.Context, voucherID int64, userID, orderRef string) error
}
