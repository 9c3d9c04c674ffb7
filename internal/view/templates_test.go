package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"InProgress": "In Progress",
		"in_transit": "In Transit",
		"GOLStaff":   "GOLStaff",
		"pending":    "Pending",
	}
	for in, want := range cases {
		assert.Equal(t, want, Label(in), in)
	}
}

func TestDict(t *testing.T) {
	m, err := dict("Action", "/x", "Next", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "/x", m["Action"])

	_, err = dict("odd")
	assert.Error(t, err)
	_, err = dict(1, "x")
	assert.Error(t, err)
}

func TestRenderHomeAnonymous(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/home.html", TemplateData{
		Title: "Welcome",
		Flash: &shared.FlashMessage{Kind: shared.FlashInfo, Message: "You have been signed out"},
		Data: []struct{ Path, Label string }{
			{Path: "/customer/login", Label: "Customer portal"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Customer portal")
	assert.Contains(t, body, "toast-info")
	assert.NotContains(t, body, "Sign out")
}

func TestRenderErrorPageWithViewer(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusForbidden, "pages/error.html", TemplateData{
		CSRFToken: "tok",
		Portal:    "gol",
		Viewer:    &Viewer{ID: "a1", Name: "Sam", Role: "GOL Staff", Portal: "gol"},
		Errors:    map[string]string{"general": "You do not have access to this record"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "You do not have access to this record")
	assert.Contains(t, body, `action="/gol/logout"`)
	assert.Contains(t, body, `value="tok"`)
	assert.Contains(t, body, `href="/gol/dashboard"`)
	assert.NotContains(t, body, "/admin/users")
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	assert.Error(t, engine.Render(rr, "pages/missing.html", TemplateData{}))
	assert.Empty(t, rr.Body.String())

	var nilEngine *Engine
	assert.Error(t, nilEngine.Render(rr, "pages/home.html", TemplateData{}))
}
