package version

import (
	"context"
	"strings"

	"github.com/google/go-github/github"
)

const versionLocal = "local"

var Version = versionLocal

const (
	repoOwner = "harry-hov"
	repoName  = "tcpls"
)

func getLatestReleaseTag(ctx context.Context, client *github.Client) (string, error) {
	latest, _, err := client.Repositories.GetLatestRelease(ctx, repoOwner, repoName)
	if err != nil {
		return "", err
	}

	if latest.TagName == nil {
		return "", nil
	}

	return *latest.TagName, nil
}

// GetVersion returns the build version. Local builds are reported against
// the latest published release, e.g. "v0.3.0-local".
func GetVersion(ctx context.Context) string {
	return getVersion(ctx, github.NewClient(nil))
}

func getVersion(ctx context.Context, client *github.Client) string {
	if Version != versionLocal {
		return Version
	}

	tag, err := getLatestReleaseTag(ctx, client)
	if err != nil {
		return Version
	}

	if tag == "" {
		return Version
	}

	parts := strings.Split(tag, "-")
	return parts[0] + "-" + versionLocal
}
