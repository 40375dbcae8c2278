package adapters

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/shared"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	defaultMavenRetries    = 3
	defaultMavenRetryDelay = 200 * time.Millisecond
	defaultMavenTimeout    = 60 * time.Second
	maxMavenRetryDelay     = 2 * time.Second
	mavenArtifactExtension = "jar"
	mavenMetadataFile      = "maven-metadata.xml"
	mavenTempPrefix        = "contracts"
)

var errMavenNotFound = errors.New("artifact not found")

// MavenDownloaderAdapter resolves stub jars from Maven layout repositories
// reachable over HTTP(S) or on disk (file:// roots, the local repository).
type MavenDownloaderAdapter struct {
	Roots      []string
	Mode       types.StubsMode
	Username   string
	Password   string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	registry   ports.TempRegistryPort
	client     *http.Client
}

var _ ports.StubDownloaderPort = MavenDownloaderAdapter{}

type mavenMetadata struct {
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
		Snapshot []struct {
			Classifier string `xml:"classifier"`
			Extension  string `xml:"extension"`
			Value      string `xml:"value"`
		} `xml:"snapshotVersions>snapshotVersion"`
	} `xml:"versioning"`
}

func NewMavenDownloaderAdapter(options types.StubRunnerOptions, registry ports.TempRegistryPort, timeoutSec int, retries int, retryDelayMs int) MavenDownloaderAdapter {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultMavenTimeout
	}
	if retries <= 0 {
		retries = defaultMavenRetries
	}
	retryDelay := time.Duration(retryDelayMs) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = defaultMavenRetryDelay
	}
	return MavenDownloaderAdapter{
		Roots:      mavenRoots(options),
		Mode:       options.StubsMode,
		Username:   options.Username,
		Password:   options.Password,
		Timeout:    timeout,
		Retries:    retries,
		RetryDelay: retryDelay,
		registry:   registry,
		client:     &http.Client{Timeout: timeout},
	}
}

func mavenRoots(options types.StubRunnerOptions) []string {
	var roots []string
	for _, root := range strings.Split(options.RepositoryRoot, ",") {
		root = strings.TrimSpace(root)
		if isHTTPLocation(root) || strings.HasPrefix(root, fileScheme) {
			roots = append(roots, strings.TrimRight(root, "/"))
		}
	}
	if len(roots) == 0 && options.StubsMode == types.StubsModeLocal && strings.TrimSpace(options.RepositoryRoot) == "" {
		if home, err := os.UserHomeDir(); err == nil {
			roots = append(roots, fileScheme+filepath.ToSlash(filepath.Join(home, ".m2", "repository")))
		}
	}
	return roots
}

func isHTTPLocation(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func (a MavenDownloaderAdapter) Name() string {
	return "maven"
}

func (a MavenDownloaderAdapter) Fetch(ctx context.Context, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	if a.Mode == types.StubsModeClasspath || len(a.Roots) == 0 {
		return types.ResolvedBundle{}, false, nil
	}
	for _, root := range a.Roots {
		bundle, found, err := a.fetchFromRoot(ctx, root, coordinate)
		if err != nil {
			return types.ResolvedBundle{}, false, err
		}
		if found {
			return bundle, true, nil
		}
	}
	log.Ctx(ctx).Warn().Str("coordinate", coordinate.String()).Strs("repositories", a.Roots).Msg("stub not found in maven repositories")
	return types.ResolvedBundle{}, false, nil
}

func (a MavenDownloaderAdapter) fetchFromRoot(ctx context.Context, root string, coordinate types.StubCoordinate) (types.ResolvedBundle, bool, error) {
	version := coordinate.Version
	if core.IsSentinelVersion(version) {
		log.Ctx(ctx).Info().Str("coordinate", coordinate.String()).Msg("desired version is a sentinel, resolving it against the available versions")
		resolved, found, err := a.resolveSentinel(ctx, root, coordinate)
		if err != nil || !found {
			return types.ResolvedBundle{}, false, err
		}
		version = resolved
	}
	resolved := coordinate.WithVersion(version)
	jar, err := a.downloadJar(ctx, root, resolved)
	if errors.Is(err, errMavenNotFound) {
		return types.ResolvedBundle{}, false, nil
	}
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	defer os.Remove(jar)
	tmp, err := a.registry.TempDir(mavenTempPrefix)
	if err != nil {
		return types.ResolvedBundle{}, false, err
	}
	if err := unzip(jar, tmp); err != nil {
		return types.ResolvedBundle{}, false, err
	}
	log.Ctx(ctx).Info().Str("coordinate", resolved.String()).Str("path", tmp).Msg("unpacked stub jar")
	return types.ResolvedBundle{Coordinate: resolved, LocalPath: tmp}, true, nil
}

func (a MavenDownloaderAdapter) artifactBase(root string, coordinate types.StubCoordinate) string {
	return root + "/" + strings.ReplaceAll(coordinate.Group, ".", "/") + "/" + coordinate.Artifact
}

// resolveSentinel picks the version a sentinel stands for from the
// version directories of a local root or the maven-metadata.xml of a
// remote one. Metadata whose versions cannot be parsed falls back to its
// <release> or <latest> element.
func (a MavenDownloaderAdapter) resolveSentinel(ctx context.Context, root string, coordinate types.StubCoordinate) (string, bool, error) {
	base := a.artifactBase(root, coordinate)
	var versions []string
	var fallback string
	if strings.HasPrefix(root, fileScheme) {
		entries, err := os.ReadDir(filepath.FromSlash(strings.TrimPrefix(base, fileScheme)))
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		if err != nil {
			return "", false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to list local repository versions").
				WithCause(err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				versions = append(versions, entry.Name())
			}
		}
	} else {
		body, err := a.get(ctx, base+"/"+mavenMetadataFile)
		if errors.Is(err, errMavenNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		var metadata mavenMetadata
		if err := xml.Unmarshal(body, &metadata); err != nil {
			return "", false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to parse maven metadata").
				WithCause(err)
		}
		versions = metadata.Versioning.Versions
		fallback = metadata.Versioning.Latest
		if core.IsReleaseSentinel(coordinate.Version) {
			fallback = metadata.Versioning.Release
		}
	}
	if picked, ok := core.PickVersion(ctx, versions, coordinate.Version); ok {
		return picked, true, nil
	}
	if fallback != "" {
		return fallback, true, nil
	}
	return "", false, nil
}

func (a MavenDownloaderAdapter) downloadJar(ctx context.Context, root string, coordinate types.StubCoordinate) (string, error) {
	fileVersion := coordinate.Version
	base := a.artifactBase(root, coordinate) + "/" + coordinate.Version
	if isHTTPLocation(root) && strings.HasSuffix(coordinate.Version, "-SNAPSHOT") {
		if timestamped, ok := a.snapshotVersion(ctx, base, coordinate); ok {
			fileVersion = timestamped
		}
	}
	name := fmt.Sprintf("%s-%s", coordinate.Artifact, fileVersion)
	if coordinate.Classifier != "" {
		name += "-" + coordinate.Classifier
	}
	name += "." + mavenArtifactExtension
	location := base + "/" + name
	if strings.HasPrefix(root, fileScheme) {
		path := filepath.FromSlash(strings.TrimPrefix(location, fileScheme))
		if _, err := os.Stat(path); err != nil {
			return "", errMavenNotFound
		}
		tmp, err := os.CreateTemp("", "stub-*.jar")
		if err != nil {
			return "", err
		}
		tmp.Close()
		if err := copyFile(path, tmp.Name()); err != nil {
			os.Remove(tmp.Name())
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to copy stub jar from local repository").
				WithCause(err)
		}
		return tmp.Name(), nil
	}
	log.Ctx(ctx).Info().Str("url", location).Msg("downloading stub jar")
	body, err := a.get(ctx, location)
	if err != nil {
		return "", err
	}
	return storeJar(body)
}

// storeJar writes body to a temporary jar file; the caller removes it.
func storeJar(body []byte) (string, error) {
	tmp, err := os.CreateTemp("", "stub-*.jar")
	if err != nil {
		return "", err
	}
	_, err = tmp.Write(body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to store stub jar").
			WithCause(err)
	}
	return tmp.Name(), nil
}

func (a MavenDownloaderAdapter) snapshotVersion(ctx context.Context, base string, coordinate types.StubCoordinate) (string, bool) {
	body, err := a.get(ctx, base+"/"+mavenMetadataFile)
	if err != nil {
		return "", false
	}
	var metadata mavenMetadata
	if err := xml.Unmarshal(body, &metadata); err != nil {
		return "", false
	}
	for _, snapshot := range metadata.Versioning.Snapshot {
		if snapshot.Classifier == coordinate.Classifier && snapshot.Extension == mavenArtifactExtension {
			return snapshot.Value, snapshot.Value != ""
		}
	}
	return "", false
}

func (a MavenDownloaderAdapter) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < a.Retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, retry, err := a.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || attempt == a.Retries-1 {
			return nil, err
		}
		time.Sleep(a.retryDelay(attempt))
	}
	return nil, lastErr
}

func (a MavenDownloaderAdapter) getOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create maven request").
			WithCause(err)
	}
	if strings.TrimSpace(a.Username) != "" {
		req.SetBasicAuth(a.Username, a.Password)
	}
	client := a.client
	if client == nil {
		client = &http.Client{Timeout: a.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("maven request failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read maven response").
			WithCause(err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errMavenNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg("maven repository rejected the credentials").
			WithCause(shared.HTTPStatusError(resp.StatusCode, url))
	}
	retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
	return nil, retry, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("maven request failed").
		WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, url, strings.TrimSpace(string(body))))
}

func (a MavenDownloaderAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxMavenRetryDelay {
		delay = maxMavenRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}
