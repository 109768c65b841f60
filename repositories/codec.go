package repositories

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// Records are stored as deterministic CBOR. Timestamps keep nanoseconds so
// join order survives a round trip.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// getValue loads and decodes the record stored at key. found is false when the key is absent.
func getValue[T any](txn *badger.Txn, key string) (value T, found bool, err error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &value)
	})
	return value, err == nil, err
}

func setValue(txn *badger.Txn, key string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func deleteKey(txn *badger.Txn, key string) error {
	return txn.Delete([]byte(key))
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanValues decodes every record whose key starts with prefix, in key order.
func scanValues[T any](txn *badger.Txn, prefix string) ([]T, error) {
	var values []T
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		var value T
		err := it.Item().Value(func(val []byte) error {
			return unmarshal(val, &value)
		})
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// scanKeySuffixes returns what follows prefix for every matching key, without loading values.
func scanKeySuffixes(txn *badger.Txn, prefix string) []string {
	var suffixes []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		suffixes = append(suffixes, string(it.Item().Key()[len(prefix):]))
	}
	return suffixes
}

func countKeys(txn *badger.Txn, prefix string) int {
	return len(scanKeySuffixes(txn, prefix))
}
