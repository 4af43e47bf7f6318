package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-client/internal/repositories"
)

// parsePage reads _start, _limit, _sort and _order.
func parsePage(c *gin.Context) (repositories.Page, error) {
	var p repositories.Page
	var err error
	if v := c.Query("_start"); v != "" {
		if p.Start, err = strconv.Atoi(v); err != nil || p.Start < 0 {
			return p, fmt.Errorf("invalid _start %q", v)
		}
	}
	if v := c.Query("_limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil || p.Limit < 0 {
			return p, fmt.Errorf("invalid _limit %q", v)
		}
	}
	p.Sort = c.Query("_sort")
	switch order := strings.ToLower(c.Query("_order")); order {
	case "", "asc":
	case "desc":
		p.Desc = true
	default:
		return p, fmt.Errorf("invalid _order %q", order)
	}
	return p, nil
}
