// Package backend builds the bank provider selected by configuration.
package backend

import (
	"fmt"
	"log/slog"

	"budgeteer/internal/bank"
	"budgeteer/internal/bank/memory"
	"budgeteer/internal/bank/plaid"
	"budgeteer/internal/config"
)

// NewBankClient constructs the bank client named by cfg.BankBackend.
// The memory provider is seeded with a month of fixture transactions and
// needs no credentials.
func NewBankClient(cfg *config.Config) (bank.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	t := bank.Type(cfg.BankBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid bank backend %q: must be one of [%s %s]",
			cfg.BankBackend, bank.TypePlaid, bank.TypeMemory)
	}

	switch t {
	case bank.TypePlaid:
		client, err := plaid.NewClient(plaid.Config{
			ClientID:    cfg.PlaidClientID,
			Secret:      cfg.PlaidSecret,
			Environment: cfg.PlaidEnvironment,
			ClientName:  cfg.PlaidClientName,
			CountryCode: cfg.PlaidCountryCode,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize plaid client: %w", err)
		}
		slog.Info("Initialized Plaid bank backend", "environment", cfg.PlaidEnvironment)
		return client, nil

	case bank.TypeMemory:
		source := memory.NewSource(nil)
		slog.Info("Initialized memory bank backend with fixture transactions")
		return source, nil

	default:
		return nil, fmt.Errorf("unsupported bank backend: %s", t)
	}
}
