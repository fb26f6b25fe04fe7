package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	require.NotEmpty(t, Version)
	if Version == "dev" {
		return
	}
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.True(t, semverRegex.MatchString(Version), "got: %s", Version)
}

func TestGetInfo_PrefersLinkerValues(t *testing.T) {
	// Given: values injected at link time
	oldCommit, oldDate := Commit, Date
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })
	Commit, Date = "abc123", "2026-01-02T03:04:05Z"

	// When: resolving build info
	info := GetInfo()

	// Then: the VCS stamp does not override them
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, runtime.Version(), info.Go)
}

func TestGetInfo_NeverLeavesFieldsEmpty(t *testing.T) {
	oldCommit, oldDate := Commit, Date
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })
	Commit, Date = "", ""

	info := GetInfo()

	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
	assert.LessOrEqual(t, len(info.Commit), 12)
}

func TestString_IncludesBuildInfo(t *testing.T) {
	info := GetInfo()

	s := String()

	assert.Contains(t, s, "corpusrank "+Version)
	assert.Contains(t, s, info.Commit)
	assert.Contains(t, s, info.Platform)
}

func TestGetInfo_MarshalsWithSnakeCaseKeys(t *testing.T) {
	data, err := json.Marshal(GetInfo())

	require.NoError(t, err)
	for _, key := range []string{`"version"`, `"commit"`, `"date"`, `"go"`, `"platform"`} {
		assert.Contains(t, string(data), key)
	}
}
