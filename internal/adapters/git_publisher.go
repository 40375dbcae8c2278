package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/types"
)

const (
	gitCommitMessageProperty = "git.commit-message"
	gitAttemptsProperty      = "git.attempts-no"
	gitWaitProperty          = "git.wait-between-attempts"
	gitAuthorNameProperty    = "git.author-name"
	gitAuthorEmailProperty   = "git.author-email"
	defaultGitAttempts       = 10
	defaultGitWaitMs         = 1000
	defaultCommitMessage     = "Updating project [%s] with stubs"
)

// GitPublisherAdapter pushes a local stubs directory into a contract
// repository below META-INF/{group}/{artifact}/{version}. Rejected pushes
// are retried on top of the refreshed remote branch.
type GitPublisherAdapter struct {
	Location   string
	Properties core.PropertyLookup
	registry   ports.TempRegistryPort
	sleep      func(time.Duration)
}

func NewGitPublisherAdapter(location string, properties map[string]string, registry ports.TempRegistryPort) GitPublisherAdapter {
	return GitPublisherAdapter{
		Location:   location,
		Properties: core.NewPropertyLookup(properties),
		registry:   registry,
		sleep:      time.Sleep,
	}
}

func (p GitPublisherAdapter) Publish(ctx context.Context, coordinate types.StubCoordinate, stubsDir string) error {
	if !IsGitLocation(p.Location) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("contract repository must use the git:// prefix, got [%s]", p.Location))
	}
	if core.IsSentinelVersion(coordinate.Version) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("a concrete version is required to publish stubs")
	}
	info, err := os.Stat(stubsDir)
	if err != nil || !info.IsDir() {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("stubs directory %s does not exist", stubsDir))
	}
	settings := newGitSettings(p.Location, p.Properties)
	dir, err := p.registry.TempDir(gitContractsTempPrefix)
	if err != nil {
		return err
	}
	repo, err := cloneRepository(ctx, settings, dir)
	if err != nil {
		return err
	}
	target := filepath.Join("META-INF", coordinate.Group, coordinate.Artifact, coordinate.Version)
	attempts := p.Properties.Int(gitAttemptsProperty, defaultGitAttempts)
	wait := time.Duration(p.Properties.Int(gitWaitProperty, defaultGitWaitMs)) * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		committed, err := p.commit(repo, dir, target, stubsDir, coordinate)
		if err != nil {
			return err
		}
		if !committed {
			log.Ctx(ctx).Info().Str("coordinate", coordinate.String()).Msg("no stub changes to publish")
			return nil
		}
		err = repo.PushContext(ctx, &git.PushOptions{RemoteName: git.DefaultRemoteName, Auth: settings.auth()})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Ctx(ctx).Info().Str("coordinate", coordinate.String()).Int("attempt", attempt).Msg("pushed stubs to contract repository")
			return nil
		}
		lastErr = err
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Int("attempts", attempts).Msg("failed to push stubs, refreshing branch")
		if attempt == attempts {
			break
		}
		p.sleep(wait)
		if err := p.resetToRemote(ctx, repo, settings); err != nil {
			return err
		}
	}
	return gitError(fmt.Sprintf("failed to push stubs after %d attempts", attempts), lastErr)
}

func (p GitPublisherAdapter) commit(repo *git.Repository, dir string, target string, stubsDir string, coordinate types.StubCoordinate) (bool, error) {
	if err := CopyDirectory(stubsDir, filepath.Join(dir, target)); err != nil {
		return false, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, gitError("failed to open worktree", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(target)); err != nil {
		return false, gitError("failed to stage stubs", err)
	}
	message := p.Properties.GetOrDefault(gitCommitMessageProperty, defaultCommitMessage)
	if strings.Contains(message, "%s") {
		message = fmt.Sprintf(message, coordinate.String())
	}
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.Properties.GetOrDefault(gitAuthorNameProperty, "stubrunner"),
			Email: p.Properties.GetOrDefault(gitAuthorEmailProperty, "stubrunner@localhost"),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return false, nil
	}
	if err != nil {
		return false, gitError("failed to commit stubs", err)
	}
	return true, nil
}

func (p GitPublisherAdapter) resetToRemote(ctx context.Context, repo *git.Repository, settings gitSettings) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{RemoteName: git.DefaultRemoteName, Auth: settings.auth(), Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return gitError("failed to fetch contract repository", err)
	}
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, settings.Branch), true)
	if err != nil {
		return gitError("failed to resolve remote branch", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return gitError("failed to open worktree", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset}); err != nil {
		return gitError("failed to reset to remote branch", err)
	}
	return nil
}
