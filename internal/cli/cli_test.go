package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/smallbiznis/wastebill/internal/authorization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wastebill dev")
}

func TestRolesCommandListsCapabilities(t *testing.T) {
	out, err := execute(t, "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "accountant (")
	assert.Contains(t, out, "  report:read")
	assert.Contains(t, out, "default (0)")
}

func TestRolesCommandJSON(t *testing.T) {
	out, err := execute(t, "roles", "--json")
	require.NoError(t, err)

	var roles map[authorization.Role][]authorization.Capability
	require.NoError(t, json.Unmarshal([]byte(out), &roles))
	assert.Len(t, roles, len(authorization.Roles))
	assert.Contains(t, roles[authorization.RoleCollector], authorization.Capability{
		Resource: authorization.ResourceCustomer,
		Action:   authorization.ActionUpdate,
	})
	assert.Empty(t, roles[authorization.RoleDefault])
}

func TestMigrateRejectsUnknownAction(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	require.Error(t, err)
}
