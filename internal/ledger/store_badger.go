package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"shardauth/pkg/platform/sentinel"
)

const (
	blockKeyPrefix = "block_"
	tailKey        = "ledger_tail"
)

func blockKey(index uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", blockKeyPrefix, index)
}

// BadgerBackend stores blocks in a badger database, one CBOR record per block.
// Zero-padded keys keep iteration in index order.
type BadgerBackend struct {
	db  *badger.DB
	enc cbor.EncMode
}

// OpenBadger opens (or creates) the database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(NewBadgerLogger(logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &BadgerBackend{db: db, enc: enc}, nil
}

func (s *BadgerBackend) Append(ctx context.Context, b Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.enc.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", b.Index, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		tail, err := readTail(txn)
		if err != nil {
			return err
		}
		if b.Index != tail+1 {
			return fmt.Errorf("append block %d after %d: %w", b.Index, tail, sentinel.ErrConflict)
		}
		if err := txn.Set(blockKey(b.Index), data); err != nil {
			return err
		}
		return txn.Set([]byte(tailKey), fmt.Appendf(nil, "%d", b.Index))
	})
}

func readTail(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(tailKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var tail uint64
	err = item.Value(func(v []byte) error {
		_, err := fmt.Sscanf(string(v), "%d", &tail)
		return err
	})
	return tail, err
}

func (s *BadgerBackend) Load(ctx context.Context) ([]Block, error) {
	var blocks []Block
	prefix := []byte(blockKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(v []byte) error {
				var b Block
				if err := cbor.Unmarshal(v, &b); err != nil {
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				blocks = append(blocks, b)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (s *BadgerBackend) Close() error {
	return s.db.Close()
}

// BadgerLogger is a wrapper type to give our logger the expected interface
type BadgerLogger struct {
	logger *slog.Logger
}

func NewBadgerLogger(logger *slog.Logger) *BadgerLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerLogger{logger: logger.With("component", "badger")}
}

func (b *BadgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...))
}

func (b *BadgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...))
}

func (b *BadgerLogger) Infof(msg string, args ...any) {
	b.logger.Info(fmt.Sprintf(msg, args...))
}

func (b *BadgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...))
}
