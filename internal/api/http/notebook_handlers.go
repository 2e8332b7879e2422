package http

import (
	"net/http"
	"os"
	"strconv"

	"github.com/GriffinCanCode/griffin-notebook/internal/providers/filesystem"
	"github.com/gin-gonic/gin"
)

// maxNotebooks caps a discovery listing
const maxNotebooks = 5000

// FindNotebooks lists notebooks under ?root_dir=. Optional parameters:
// pattern (doublestar glob), hidden, inspect and limit.
func (h *Handlers) FindNotebooks(c *gin.Context) {
	root := c.Query("root_dir")
	if root == "" {
		badRequest(c, "root_dir is required")
		return
	}

	opts := filesystem.FindOptions{
		Pattern: c.Query("pattern"),
		Limit:   maxNotebooks,
	}
	var err error
	if opts.IncludeHidden, err = boolQuery(c, "hidden"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if opts.Inspect, err = boolQuery(c, "inspect"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "invalid limit: "+strconv.Quote(v))
			return
		}
		if n < maxNotebooks {
			opts.Limit = n
		}
	}

	notebooks, err := filesystem.FindNotebooks(c.Request.Context(), root, opts)
	if err != nil {
		status := http.StatusBadRequest
		if os.IsNotExist(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if notebooks == nil {
		notebooks = []filesystem.Notebook{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"root_dir":  root,
		"notebooks": notebooks,
	})
}
