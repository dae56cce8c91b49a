package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.etcd.io/bbolt"

	"github.com/udooneo/neo/hardware"
	"github.com/udooneo/neo/hardware/gpio"
)

type BBolt struct {
	db *bbolt.DB
}

// compile-time check for whether BBolt satisfies the Store interface
var _ Store = &BBolt{}

const (
	bboltNeoBucket       = "neo"
	bboltPinConfigBucket = "pins" // child of neo

	// neo keys
	bboltHardwareKey = "hardware"
)

// OpenBBolt opens a BBoltDB database at the given path and creates the needed buckets
// if they don't exist.
func OpenBBolt(path string, mode os.FileMode, options *bbolt.Options) (*BBolt, error) {
	db, err := bbolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		neoBucket, err := tx.CreateBucketIfNotExists([]byte(bboltNeoBucket))
		if err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bboltNeoBucket, err)
		}

		_, err = neoBucket.CreateBucketIfNotExists([]byte(bboltPinConfigBucket))
		if err != nil {
			return fmt.Errorf("unable to create bucket %q: %w", bboltPinConfigBucket, err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create bbolt buckets: %w", err)
	}

	return &BBolt{
		db: db,
	}, nil
}

func (b *BBolt) Close() error {
	return b.db.Close()
}

func pinKey(pin int) []byte {
	return []byte(strconv.Itoa(pin))
}

func pinBucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket([]byte(bboltNeoBucket)).Bucket([]byte(bboltPinConfigBucket))
}

func (b *BBolt) PinConfig(pin int) (gpio.PinConfig, error) {
	var c gpio.PinConfig
	err := b.db.View(func(tx *bbolt.Tx) error {
		configJSON := pinBucket(tx).Get(pinKey(pin))
		if configJSON == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(configJSON, &c); err != nil {
			return fmt.Errorf("unable to unmarshal pin config JSON: %w", err)
		}

		return nil
	})
	if err != nil {
		return c, fmt.Errorf("unable to get pin config %d: %w", pin, err)
	}

	return c, nil
}

func (b *BBolt) ListPinConfigs() (map[int]gpio.PinConfig, error) {
	configs := make(map[int]gpio.PinConfig)

	err := b.db.View(func(tx *bbolt.Tx) error {
		err := pinBucket(tx).ForEach(func(k, v []byte) error {
			pin, err := strconv.Atoi(string(k))
			if err != nil {
				return fmt.Errorf("bad pin key %q: %w", k, err)
			}

			var c gpio.PinConfig
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unable to unmarshal config of pin %d: %w", pin, err)
			}

			configs[pin] = c
			return nil
		})
		if err != nil {
			return fmt.Errorf("unable to iterate over pin bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list pin configs: %w", err)
	}

	return configs, nil
}

func (b *BBolt) PutPinConfig(pin int, c gpio.PinConfig) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		configJSON, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("unable to marshal pin config: %w", err)
		}

		if err := pinBucket(tx).Put(pinKey(pin), configJSON); err != nil {
			return fmt.Errorf("unable to put pin config %d: %w", pin, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to update pin config: %w", err)
	}

	return nil
}

func (b *BBolt) DeletePinConfig(pin int) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return pinBucket(tx).Delete(pinKey(pin))
	})
	if err != nil {
		return fmt.Errorf("unable to delete pin config %d: %w", pin, err)
	}

	return nil
}

func (b *BBolt) HardwareConfig() (hardware.Config, error) {
	var h hardware.Config
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bboltNeoBucket))
		hardwareJSON := bucket.Get([]byte(bboltHardwareKey))
		if hardwareJSON == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(hardwareJSON, &h); err != nil {
			return fmt.Errorf("unable to unmarshal hardware config JSON: %w", err)
		}

		return nil
	})
	if err != nil {
		return h, fmt.Errorf("unable to get hardware config: %w", err)
	}

	return h, nil
}

func (b *BBolt) PutHardwareConfig(h hardware.Config) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		hardwareJSON, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("unable to marshal hardware config: %w", err)
		}

		bucket := tx.Bucket([]byte(bboltNeoBucket))
		if err := bucket.Put([]byte(bboltHardwareKey), hardwareJSON); err != nil {
			return fmt.Errorf("unable to put hardware config: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to update hardware config: %w", err)
	}

	return nil
}
