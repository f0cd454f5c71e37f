package storages

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/reusee/infsite/cmds"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/vars"
)

// Store holds finished documents by key. Put replaces any previous value.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

type StorageKind string

const (
	StorageFile   StorageKind = "file"
	StorageSQLite StorageKind = "sqlite"
	StorageRedis  StorageKind = "redis"
	StorageS3     StorageKind = "s3"
	StorageMemory StorageKind = "memory"
)

var (
	storageFlag  = cmds.Var[string]("-storage")
	cacheDirFlag = cmds.Var[string]("-cache-dir")
)

func (Module) StorageKind(
	loader configs.Loader,
) StorageKind {
	return vars.FirstNonZero(
		StorageKind(*storageFlag),
		configs.First[StorageKind](loader, "storage"),
		StorageFile,
	)
}

type CacheDir string

func (Module) CacheDir(
	loader configs.Loader,
) CacheDir {
	return vars.FirstNonZero(
		CacheDir(*cacheDirFlag),
		configs.First[CacheDir](loader, "cache_dir"),
		"generated",
	)
}

type GetStore func() (Store, error)

func (Module) GetStore(
	kind StorageKind,
	cacheDir CacheDir,
	loader configs.Loader,
	logger logs.Logger,
) GetStore {
	return sync.OnceValues(func() (ret Store, err error) {
		defer func() {
			if err == nil {
				logger.Info("cache store", "kind", kind)
			}
		}()

		switch kind {

		case StorageFile:
			return NewFileStore(string(cacheDir))

		case StorageSQLite:
			return NewSQLiteStore(vars.FirstNonZero(
				configs.First[string](loader, "sqlite_path"),
				filepath.Join(string(cacheDir), "pages.db"),
			))

		case StorageRedis:
			return NewRedisStore(context.Background(), RedisConfig{
				Addr:     vars.FirstNonZero(configs.First[string](loader, "redis_addr"), "127.0.0.1:6379"),
				DB:       configs.First[int](loader, "redis_db"),
				Password: configs.First[string](loader, "redis_password"),
			})

		case StorageS3:
			return NewS3Store(S3Config{
				Endpoint:  configs.First[string](loader, "s3_endpoint"),
				Region:    configs.First[string](loader, "s3_region"),
				Bucket:    configs.First[string](loader, "s3_bucket"),
				AccessKey: configs.First[string](loader, "s3_access_key"),
				SecretKey: configs.First[string](loader, "s3_secret_key"),
				UseSSL: vars.DerefOrZero(vars.FirstNonZero(
					configs.First[*bool](loader, "s3_use_ssl"),
					vars.PtrTo(true),
				)),
			})

		case StorageMemory:
			return NewMemoryStore(), nil

		}

		return nil, fmt.Errorf("unknown storage: %q", kind)
	})
}
