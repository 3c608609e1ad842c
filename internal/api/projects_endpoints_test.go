package api_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/testutil"
)

func TestProjectLifecycle(t *testing.T) {
	router, setup := newTestRouter(t)

	other := testutil.CreateTestUser(t, setup.DB)
	otherToken := testutil.GenerateTestToken(t, setup.Tokens, other)

	var projectID string

	t.Run("requires authentication", func(t *testing.T) {
		rec := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/projects", nil))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("creates a draft project", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/projects", map[string]interface{}{
			"name":    "Perimeter sweep",
			"tool_id": setup.Tool.ID.String(),
			"tags":    []string{"Recon", "HTTP"},
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusCreated)

		var project models.Project
		testutil.ParseJSONResponse(t, rec, &project)
		assert.Equal(t, models.ProjectStatusDraft, project.Status)
		assert.Equal(t, setup.Tool.Name, project.ToolType)
		assert.Equal(t, []string{"recon", "http"}, project.Tags)

		projectID = project.ID.String()
	})

	t.Run("missing tool fails validation", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/projects", map[string]interface{}{
			"name": "No tool",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("owner reads it back", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects/"+projectID, nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)
	})

	t.Run("a stranger gets 403, a missing project 404", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects/"+projectID, nil, otherToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)

		rec = serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects/"+uuid.NewString(), nil, otherToken))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("owner updates status and results", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "PUT", "/api/projects/"+projectID, map[string]interface{}{
			"status":  "in-progress",
			"results": `{"hosts": 12}`,
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var project models.Project
		testutil.ParseJSONResponse(t, rec, &project)
		assert.Equal(t, models.ProjectStatusInProgress, project.Status)
		assert.Equal(t, `{"hosts": 12}`, project.Results)
	})

	t.Run("listing shows the project to its owner only", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var mine struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rec, &mine)
		assert.EqualValues(t, 1, mine.Total)

		rec = serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects", nil, otherToken))
		var theirs struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rec, &theirs)
		assert.EqualValues(t, 0, theirs.Total)
	})

	t.Run("owner deletes the project", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "DELETE", "/api/projects/"+projectID, nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		rec = serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects/"+projectID, nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})
}

func TestProjectSharing(t *testing.T) {
	router, setup := newTestRouter(t)

	grantee := testutil.CreateTestUser(t, setup.DB)
	granteeToken := testutil.GenerateTestToken(t, setup.Tokens, grantee)
	project := testutil.CreateTestProject(t, setup.DB, setup.User, setup.Tool)
	base := "/api/projects/" + project.ID.String()

	t.Run("owner grants view access", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/share", map[string]string{
			"user_id":    grantee.ID.String(),
			"permission": "view",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)
	})

	t.Run("viewer reads but cannot edit", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", base, nil, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusOK)

		rec = serve(router, testutil.AuthenticatedRequest(t, "PUT", base, map[string]string{
			"name": "Hijacked",
		}, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("upgrading to edit updates the grant in place", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/share", map[string]string{
			"user_id":    grantee.ID.String(),
			"permission": "edit",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var count int64
		require.NoError(t, setup.DB.Model(&models.ProjectShare{}).
			Where("project_id = ? AND user_id = ?", project.ID, grantee.ID).
			Count(&count).Error)
		assert.EqualValues(t, 1, count)

		rec = serve(router, testutil.AuthenticatedRequest(t, "PUT", base, map[string]string{
			"name": "Joint effort",
		}, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusOK)
	})

	t.Run("editor still cannot delete or re-share", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "DELETE", base, nil, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)

		third := testutil.CreateTestUser(t, setup.DB)
		rec = serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/share", map[string]string{
			"user_id":    third.ID.String(),
			"permission": "view",
		}, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("sharing with the owner is rejected", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/share", map[string]string{
			"user_id":    setup.User.ID.String(),
			"permission": "view",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("bad permission fails validation", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/share", map[string]string{
			"user_id":    grantee.ID.String(),
			"permission": "owner",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("unshare revokes access", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "DELETE", base+"/share/"+grantee.ID.String(), nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		rec = serve(router, testutil.AuthenticatedRequest(t, "GET", base, nil, granteeToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)

		rec = serve(router, testutil.AuthenticatedRequest(t, "DELETE", base+"/share/"+grantee.ID.String(), nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})
}

func TestProjectNotes(t *testing.T) {
	router, setup := newTestRouter(t)

	viewer := testutil.CreateTestUser(t, setup.DB)
	viewerToken := testutil.GenerateTestToken(t, setup.Tokens, viewer)
	project := testutil.CreateTestProject(t, setup.DB, setup.User, setup.Tool)
	testutil.ShareTestProject(t, setup.DB, project, viewer, models.PermissionView)
	base := "/api/projects/" + project.ID.String()

	t.Run("owner adds a note", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/notes", map[string]string{
			"content": "Scan finished clean",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusCreated)

		var note models.ProjectNote
		testutil.ParseJSONResponse(t, rec, &note)
		assert.Equal(t, setup.User.ID, note.AuthorID)
	})

	t.Run("strips control characters from note content", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/notes", map[string]string{
			"content": "Fla\x00gged\x07 host:\n\t10.0.0.4",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusCreated)

		var note models.ProjectNote
		testutil.ParseJSONResponse(t, rec, &note)
		assert.Equal(t, "Flagged host:\n\t10.0.0.4", note.Content)
	})

	t.Run("viewer cannot add notes", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/notes", map[string]string{
			"content": "nope",
		}, viewerToken))
		testutil.AssertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("empty content fails validation", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", base+"/notes", map[string]string{}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestProjectTemplates(t *testing.T) {
	router, setup := newTestRouter(t)

	project := testutil.CreateTestProject(t, setup.DB, setup.User, setup.Tool)
	require.NoError(t, setup.DB.Model(project).Update("configuration", `{"ports": "1-1024"}`).Error)

	t.Run("saves a project as a template", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/projects/"+project.ID.String()+"/template", map[string]string{
			"name":        "Port baseline",
			"description": "Standard sweep",
		}, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusCreated)

		var template models.Project
		testutil.ParseJSONResponse(t, rec, &template)
		assert.True(t, template.IsTemplate)
		assert.Equal(t, "Port baseline", template.TemplateName)
		assert.Equal(t, `{"ports": "1-1024"}`, template.Configuration)
	})

	t.Run("templates list shows it to its owner", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects/templates", nil, setup.Token))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var templates []models.Project
		testutil.ParseJSONResponse(t, rec, &templates)
		assert.Len(t, templates, 1)
	})

	t.Run("templates stay out of the project list", func(t *testing.T) {
		rec := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/projects", nil, setup.Token))

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rec, &resp)
		assert.EqualValues(t, 1, resp.Total)
	})
}
