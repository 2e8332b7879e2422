package http

import (
	"net/http"

	"github.com/GriffinCanCode/griffin-notebook/internal/providers/theme"
	"github.com/gin-gonic/gin"
)

// ThemeRequest updates the theme preference and what the host reports
type ThemeRequest struct {
	Preference *string `json:"preference"`
	HostDark   *bool   `json:"host_dark"`
}

// GetTheme returns the theme preference and its current resolution
func (h *Handlers) GetTheme(c *gin.Context) {
	h.themeResponse(c)
}

// SetTheme changes the preference used for newly started servers
func (h *Handlers) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	themes := h.registry.Themes()
	if req.Preference != nil {
		pref, err := theme.Parse(*req.Preference)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		themes.SetPreference(pref)
	}
	if req.HostDark != nil {
		themes.SetHostDark(*req.HostDark)
	}

	h.themeResponse(c)
}

func (h *Handlers) themeResponse(c *gin.Context) {
	themes := h.registry.Themes()
	dark, err := themes.Resolve("")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"preference": string(themes.Preference()),
		"host_dark":  themes.HostDark(),
		"dark_theme": dark,
	})
}
