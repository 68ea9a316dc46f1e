package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StoreConfig holds commerce settings that merchants tune without redeploying.
type StoreConfig struct {
	StoreName        string  `mapstructure:"storeName"`
	Currency         string  `mapstructure:"currency"`
	TaxRate          float64 `mapstructure:"taxRate"`
	ShippingFlatRate int64   `mapstructure:"shippingFlatRate"`
	// PendingOrderTTLHours controls the stock-release sweep for orders that
	// never complete payment. Zero disables the sweep.
	PendingOrderTTLHours int `mapstructure:"pendingOrderTtlHours"`
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		StoreName:            "Storefront",
		Currency:             "USD",
		TaxRate:              0.18,
		ShippingFlatRate:     0,
		PendingOrderTTLHours: 24,
	}
}

// StoreConfigHolder exposes the current StoreConfig with hot reload.
type StoreConfigHolder struct {
	current atomic.Value // holds StoreConfig
}

func NewStoreConfigHolder() (*StoreConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("store")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storefront/config")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultStoreConfig()
	v.SetDefault("store.storeName", defaults.StoreName)
	v.SetDefault("store.currency", defaults.Currency)
	v.SetDefault("store.taxRate", defaults.TaxRate)
	v.SetDefault("store.shippingFlatRate", defaults.ShippingFlatRate)
	v.SetDefault("store.pendingOrderTtlHours", defaults.PendingOrderTTLHours)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg StoreConfig
	if err := v.UnmarshalKey("store", &cfg); err != nil {
		return nil, err
	}
	if err := validateStoreConfig(cfg); err != nil {
		return nil, err
	}

	holder := &StoreConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated StoreConfig
		if err := v.UnmarshalKey("store", &updated); err != nil {
			log.Printf("[store-config] reload failed: %v", err)
			return
		}
		if err := validateStoreConfig(updated); err != nil {
			log.Printf("[store-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[store-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *StoreConfigHolder) Get() StoreConfig {
	return h.current.Load().(StoreConfig)
}

// NewStaticStoreConfigHolder wraps a fixed config, used by tests.
func NewStaticStoreConfigHolder(cfg StoreConfig) *StoreConfigHolder {
	holder := &StoreConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateStoreConfig(cfg StoreConfig) error {
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return errors.New("store.taxRate must be in [0, 1)")
	}
	if cfg.ShippingFlatRate < 0 {
		return errors.New("store.shippingFlatRate cannot be negative")
	}
	if cfg.PendingOrderTTLHours < 0 {
		return errors.New("store.pendingOrderTtlHours cannot be negative")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("store.currency cannot be empty")
	}
	return nil
}
