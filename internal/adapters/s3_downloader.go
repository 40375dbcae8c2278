package adapters

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	s3Scheme            = "s3://"
	s3ContractsPrefix   = "s3-contracts"
	s3DownloadWorkers   = 4
	s3DownloadWorkerKey = "s3.workers"
)

// S3DownloaderAdapter downloads stubs stored as
// {prefix}/META-INF/{group}/{artifact}/{version}/** in a bucket. Objects
// of one location share a single local root.
type S3DownloaderAdapter struct {
	Location   string
	Properties core.PropertyLookup
	store      ports.ObjectStorePort
	registry   ports.TempRegistryPort
	roots      sync.Map
	rootGroup  singleflight.Group
}

var _ ports.StubDownloaderPort = (*S3DownloaderAdapter)(nil)

func NewS3DownloaderAdapter(options types.StubRunnerOptions, store ports.ObjectStorePort, registry ports.TempRegistryPort) *S3DownloaderAdapter {
	return &S3DownloaderAdapter{
		Location:   options.RepositoryRoot,
		Properties: core.NewPropertyLookup(options.Properties),
		store:      store,
		registry:   registry,
	}
}

func (a *S3DownloaderAdapter) Name() string {
	return "s3"
}

// IsS3Location reports whether location uses the s3:// scheme.
func IsS3Location(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), s3Scheme)
}

// ParseS3Location splits s3://bucket/prefix into bucket and prefix.
func ParseS3Location(location string) (string, string) {
	rest := strings.TrimPrefix(strings.TrimSpace(location), s3Scheme)
	bucket, prefix, _ := strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

func (a *S3DownloaderAdapter) Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	if !IsS3Location(a.Location) || a.store == nil {
		return types.ResolvedBundle{}, false, nil
	}
	bucket, prefix := ParseS3Location(a.Location)
	if bucket == "" {
		return types.ResolvedBundle{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("s3 location [%s] has no bucket", a.Location))
	}
	artifactPrefix := path.Join(prefix, "META-INF", coordinate.Group, coordinate.Artifact) + "/"
	keys, err := a.store.List(ctx, bucket, artifactPrefix)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	version := coordinate.Version
	if core.IsSentinelVersion(version) {
		resolved, ok := core.PickVersion(ctx, versionSegments(keys, artifactPrefix), version)
		if !ok {
			return types.ResolvedBundle{}, false, nil
		}
		log.Ctx(ctx).Info().Str("requested", version).Str("resolved", resolved).Msg("resolved sentinel version from object keys")
		version = resolved
	}
	versionPrefix := artifactPrefix + version + "/"
	var matched []string
	for _, key := range keys {
		if strings.HasPrefix(key, versionPrefix) && !strings.HasSuffix(key, "/") {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		log.Ctx(ctx).Warn().Str("bucket", bucket).Str("prefix", versionPrefix).Msg("no stub objects found")
		return types.ResolvedBundle{}, false, nil
	}
	root, err := a.localRoot(bucket, prefix)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	if err := a.download(ctx, bucket, matched, root); err != nil {
		return types.ResolvedBundle{}, false, err
	}
	local := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(versionPrefix, "/")))
	log.Ctx(ctx).Info().Str("bucket", bucket).Int("objects", len(matched)).Str("path", local).Msg("downloaded stubs from object storage")
	return types.ResolvedBundle{Coordinate: coordinate.WithVersion(version), LocalPath: local}, true, nil
}

func versionSegments(keys []string, artifactPrefix string) []string {
	seen := map[string]struct{}{}
	var versions []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, artifactPrefix)
		segment, _, ok := strings.Cut(rest, "/")
		if !ok || segment == "" {
			continue
		}
		if _, dup := seen[segment]; dup {
			continue
		}
		seen[segment] = struct{}{}
		versions = append(versions, segment)
	}
	return versions
}

func (a *S3DownloaderAdapter) localRoot(bucket string, prefix string) (string, error) {
	key := bucket + "/" + prefix
	if dir, ok := a.roots.Load(key); ok {
		return dir.(string), nil
	}
	result, err, _ := a.rootGroup.Do(key, func() (any, error) {
		if dir, ok := a.roots.Load(key); ok {
			return dir.(string), nil
		}
		dir, err := a.registry.TempDir(s3ContractsPrefix)
		if err != nil {
			return nil, err
		}
		a.roots.Store(key, dir)
		return dir, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// download writes every key below root; keys resolving outside root are
// rejected before anything is fetched.
func (a *S3DownloaderAdapter) download(ctx context.Context, bucket string, keys []string, root string) error {
	targets := make(map[string]string, len(keys))
	for _, key := range keys {
		dest, ok := containedPath(root, key)
		if !ok || dest == filepath.Clean(root) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("illegal object key %s", key))
		}
		targets[key] = dest
	}
	group, groupCtx := errgroup.WithContext(ctx)
	workers := a.Properties.Int(s3DownloadWorkerKey, s3DownloadWorkers)
	if workers <= 0 {
		workers = s3DownloadWorkers
	}
	group.SetLimit(workers)
	for key, dest := range targets {
		group.Go(func() error {
			body, err := a.store.Get(groupCtx, bucket, key)
			if err != nil {
				return err
			}
			defer body.Close()
			if err := writeStream(dest, body); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to store object %s", key)).
					WithCause(err)
			}
			return nil
		})
	}
	return group.Wait()
}
