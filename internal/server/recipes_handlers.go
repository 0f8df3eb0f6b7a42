package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/recipes"
	"github.com/gin-gonic/gin"
)

type createdResponse struct {
	Recipe        recipes.Recipe `json:"recipe"`
	ParentMissing bool           `json:"parentMissing"`
}

type commentPayload struct {
	Body string `json:"body"`
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	criteria := recipes.Criteria{
		Tags:        c.Query("tags"),
		Exclude:     c.Query("exclude"),
		Meals:       c.Query("meals"),
		Username:    c.Query("username"),
		Forks:       c.Query("forks"),
		Search:      c.Query("search"),
		Featured:    queryFlag(c, "featured"),
		Following:   queryFlag(c, "following"),
		Favourites:  queryFlag(c, "favourites"),
		Preferences: c.Query("preferences"),
		Sort:        c.Query("sort"),
		Order:       c.Query("order"),
		Page:        c.Query("page"),
	}
	page, err := h.recipes.Search(c.Request.Context(), criteria, sessionFrom(c), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if page.Items == nil {
		page.Items = []recipes.Recipe{}
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleViewRecipe(c *gin.Context) {
	details, err := h.recipes.View(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if details.FavouritedBy == nil {
		details.FavouritedBy = []string{}
	}
	if details.Children == nil {
		details.Children = []recipes.ForkRef{}
	}
	c.JSON(http.StatusOK, details)
}

func (h *httpHandler) handleCreateRecipe(c *gin.Context) {
	var input recipes.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalidRequest(c, "malformed recipe")
		return
	}
	created, err := h.recipes.Create(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdResponse{Recipe: created.Recipe, ParentMissing: created.ParentMissing})
}

func (h *httpHandler) handleForkRecipe(c *gin.Context) {
	var input recipes.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalidRequest(c, "malformed recipe")
		return
	}
	created, err := h.recipes.CreateFork(c.Request.Context(), actorFrom(c), c.Param("slug"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdResponse{Recipe: created.Recipe, ParentMissing: created.ParentMissing})
}

func (h *httpHandler) handleEditRecipe(c *gin.Context) {
	var input recipes.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalidRequest(c, "malformed recipe")
		return
	}
	recipe, err := h.recipes.Edit(c.Request.Context(), actorFrom(c), c.Param("slug"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *httpHandler) handleDeleteRecipe(c *gin.Context) {
	if err := h.recipes.Delete(c.Request.Context(), actorFrom(c), c.Param("slug")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleToggleFavourite(c *gin.Context) {
	favourited, err := h.recipes.ToggleFavourite(c.Request.Context(), c.Param("slug"), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favourited": favourited})
}

func (h *httpHandler) handleToggleFeature(c *gin.Context) {
	featured, err := h.recipes.ToggleFeature(c.Request.Context(), c.Param("slug"), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"featured": featured})
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	entries, err := h.recipes.ListComments(c.Request.Context(), c.Param("slug"), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []recipes.LedgerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"comments": entries})
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	var request commentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "comment body is required")
		return
	}
	index, err := h.recipes.AddComment(c.Request.Context(), c.Param("slug"), actorFrom(c), request.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"index": index})
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	if err := h.recipes.DeleteComment(c.Request.Context(), c.Param("slug"), c.Param("index"), actorFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryFlag treats a bare or truthy query parameter as set.
func queryFlag(c *gin.Context, name string) bool {
	value, ok := c.GetQuery(name)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
