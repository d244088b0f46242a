package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

func TestParseSubjectFlag(t *testing.T) {
	subject, err := parseSubjectFlag("")
	require.NoError(t, err)
	assert.Nil(t, subject)

	subject, err = parseSubjectFlag("英语")
	require.NoError(t, err)
	assert.Equal(t, models.SubjectEnglish, *subject)

	_, err = parseSubjectFlag("art")
	assert.Error(t, err)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"student-report", "class-report", "export", "import", "token"})
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"token", "user-1", "--role", "janitor"})

	assert.Error(t, root.Execute())
}

func TestTokenCommandPrintsToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "user-1", "--role", "teacher"})

	require.NoError(t, root.Execute())
	assert.Equal(t, 2, bytes.Count(stdout.Bytes(), []byte(".")))
}
