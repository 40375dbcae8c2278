package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/shared"
)

const (
	gitScheme              = "git://"
	gitBranchProperty      = "git.branch"
	gitUsernameProperty    = "git.username"
	gitPasswordProperty    = "git.password"
	defaultGitBranch       = "master"
	gitContractsTempPrefix = "git-contracts"
)

// gitSettings carries the repository location and the git.* properties.
type gitSettings struct {
	URL      string
	Branch   string
	Username string
	Password string
}

func newGitSettings(location string, properties core.PropertyLookup) gitSettings {
	return gitSettings{
		URL:      GitRepositoryURL(location),
		Branch:   properties.GetOrDefault(gitBranchProperty, defaultGitBranch),
		Username: properties.Get(gitUsernameProperty),
		Password: properties.Get(gitPasswordProperty),
	}
}

func (s gitSettings) auth() transport.AuthMethod {
	if strings.TrimSpace(s.Username) == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: s.Username, Password: s.Password}
}

func (s gitSettings) branchRef() plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(s.Branch)
}

// IsGitLocation reports whether location uses the git:// prefix.
func IsGitLocation(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), gitScheme)
}

// GitRepositoryURL strips the git:// marker from locations that wrap
// another transport (git://https://host/repo.git becomes
// https://host/repo.git). Plain git:// URLs are kept.
func GitRepositoryURL(location string) string {
	trimmed := strings.TrimSpace(location)
	rest := strings.TrimPrefix(trimmed, gitScheme)
	for _, prefix := range []string{"https://", "http://", "ssh://", "file://", "git@", "/"} {
		if strings.HasPrefix(rest, prefix) {
			return rest
		}
	}
	return trimmed
}

// cloneRepository clones the configured branch of the repository into dir.
func cloneRepository(ctx context.Context, settings gitSettings, dir string) (*git.Repository, error) {
	log.Ctx(ctx).Info().
		Str("url", settings.URL).
		Str("branch", settings.Branch).
		Str("user", shared.MaskSecret(settings.Username)).
		Str("path", dir).
		Msg("cloning contract repository")
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           settings.URL,
		Auth:          settings.auth(),
		ReferenceName: settings.branchRef(),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, gitError(fmt.Sprintf("failed to clone repository %s", settings.URL), err)
	}
	return repo, nil
}

func gitError(message string, err error) error {
	code := errbuilder.CodeInternal
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		code = errbuilder.CodePermissionDenied
	}
	if errors.Is(err, transport.ErrRepositoryNotFound) {
		code = errbuilder.CodeNotFound
	}
	return errbuilder.New().
		WithCode(code).
		WithMsg(message).
		WithCause(err)
}
