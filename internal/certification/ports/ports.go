// Package ports declares what the certification service needs from the
// outside: persistence, a height source, authorization, payments and audit.
package ports

import (
	"context"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	audit "certreg/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// Clock supplies the current logical height.
type Clock interface {
	CurrentHeight() uint64
}

// AuthorizationOracle answers whether an account may mint.
type AuthorizationOracle interface {
	IsAuthorized(ctx context.Context, principal domain.Principal) (bool, error)
}

// PaymentGateway moves and confirms mint fees. false with a nil error is a
// decline.
type PaymentGateway interface {
	Transfer(ctx context.Context, amount uint64, from, to domain.Principal) (bool, error)
	ConfirmFeePayment(ctx context.Context, amount uint64, payer domain.Principal) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Store holds certification entries. Get and Delete return
// sentinel.ErrNotFound for an absent id; Insert returns sentinel.ErrConflict
// for a present one.
type Store interface {
	Get(ctx context.Context, id domain.CertID) (*models.Entry, error)
	Exists(ctx context.Context, id domain.CertID) (bool, error)
	Insert(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, id domain.CertID) error
}

// ConfigStore persists the registry configuration. Load returns
// sentinel.ErrNotFound before the first Save. LoadForUpdate returns defaults
// when nothing is stored and, inside a transaction, holds the configuration
// until commit.
type ConfigStore interface {
	Load(ctx context.Context) (*models.RegistryConfig, error)
	LoadForUpdate(ctx context.Context, defaults models.RegistryConfig) (*models.RegistryConfig, error)
	Save(ctx context.Context, cfg *models.RegistryConfig) error
}

// Stores groups the stores a transaction operates on.
type Stores struct {
	Certs  Store
	Config ConfigStore
}

// RegistryTx is the single critical section for every mutation. Writes made
// through stores commit together when fn returns nil and are discarded
// otherwise.
type RegistryTx interface {
	RunInTx(ctx context.Context, fn func(stores Stores) error) error
}
