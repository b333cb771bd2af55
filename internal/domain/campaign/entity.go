// Package campaign contains the read-only campaign content model. Campaigns
// are authored and published externally; the engine only reads them to know
// module order, question counts, and XP totals.
package campaign

import (
	"time"

	"github.com/training-hub/training-hub/internal/domain/shared"
)

// Item is one video-plus-quiz module within a campaign, in authored order.
type Item struct {
	// ID is the module identifier, unique within the campaign.
	ID string `json:"id"`

	// VideoID references the externally hosted video.
	VideoID string `json:"video_id"`

	// QuestionCount is the number of quiz questions the module carries.
	// Zero means the author has not attached the quiz yet; readers fall
	// back to the central default question target.
	QuestionCount int `json:"question_count"`

	// EstimatedMinutes is the authored duration estimate.
	EstimatedMinutes int `json:"estimated_minutes"`
}

// Computed is the publisher-computed campaign metadata.
type Computed struct {
	// TotalItems is the module count.
	TotalItems int `json:"total_items"`

	// EstimatedMinutes is the summed duration estimate.
	EstimatedMinutes int `json:"estimated_minutes"`

	// TotalXP is the XP pool the campaign pays out across its modules.
	TotalXP int `json:"total_xp"`
}

// Campaign is one assigned learning campaign.
type Campaign struct {
	// ID is the campaign slug.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Items are the modules in authored order.
	Items []Item `json:"items"`

	// EndDate is the optional schedule deadline.
	EndDate *time.Time `json:"end_date,omitempty"`

	// Computed is the publisher-computed metadata.
	Computed Computed `json:"computed"`

	// CreatedAt is when the campaign was published.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last publish time.
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalModules returns the module count, preferring the item list over the
// published counter when the two disagree.
func (c *Campaign) TotalModules() int {
	if len(c.Items) > 0 || c.Computed.TotalItems == 0 {
		return len(c.Items)
	}
	return c.Computed.TotalItems
}

// ModuleIDs returns the ordered module identifiers.
func (c *Campaign) ModuleIDs() []string {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ID
	}
	return ids
}

// ModuleIndex returns the position of a module, or -1 when absent.
func (c *Campaign) ModuleIndex(moduleID string) int {
	for i, item := range c.Items {
		if item.ID == moduleID {
			return i
		}
	}
	return -1
}

// Module returns the item for a module ID.
func (c *Campaign) Module(moduleID string) (Item, error) {
	idx := c.ModuleIndex(moduleID)
	if idx < 0 {
		return Item{}, shared.ErrModuleNotFound
	}
	return c.Items[idx], nil
}

// XPForModule splits the campaign XP pool evenly across modules, integer
// division with the remainder paid out on the final module so the per-module
// amounts always sum to exactly Computed.TotalXP.
func (c *Campaign) XPForModule(index int) int {
	total := len(c.Items)
	if total == 0 || index < 0 || index >= total {
		return 0
	}

	share := c.Computed.TotalXP / total
	if index == total-1 {
		return c.Computed.TotalXP - share*(total-1)
	}
	return share
}

// IsExpired checks the schedule deadline against now.
func (c *Campaign) IsExpired(now time.Time) bool {
	return c.EndDate != nil && now.After(*c.EndDate)
}
