package live

import (
	"sort"
	"sync"

	"github.com/nextlevelbuilder/livectl/internal/platform"
)

// builtinAreas is the partition hierarchy shipped with the tool so area
// validation works offline. RefreshAreas replaces it with the remote list.
var builtinAreas = []platform.AreaGroup{
	{ID: 2, Name: "网游", Children: []platform.Area{
		{ID: 86, Name: "英雄联盟", ParentID: 2},
		{ID: 92, Name: "DOTA2", ParentID: 2},
		{ID: 88, Name: "穿越火线", ParentID: 2},
	}},
	{ID: 3, Name: "手游", Children: []platform.Area{
		{ID: 35, Name: "王者荣耀", ParentID: 3},
		{ID: 256, Name: "和平精英", ParentID: 3},
	}},
	{ID: 6, Name: "单机游戏", Children: []platform.Area{
		{ID: 216, Name: "我的世界", ParentID: 6},
		{ID: 283, Name: "独立游戏", ParentID: 6},
	}},
	{ID: 11, Name: "知识", Children: []platform.Area{
		{ID: 376, Name: "人文社科", ParentID: 11},
		{ID: 377, Name: "科学科普", ParentID: 11},
	}},
}

// AreaTable answers area-pair validation queries against the current
// hierarchy.
type AreaTable struct {
	mu     sync.RWMutex
	groups []platform.AreaGroup
}

// NewAreaTable creates a table seeded with the built-in hierarchy.
func NewAreaTable() *AreaTable {
	return &AreaTable{groups: builtinAreas}
}

// Groups returns the current hierarchy, parents sorted by id.
func (t *AreaTable) Groups() []platform.AreaGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]platform.AreaGroup, len(t.groups))
	copy(out, t.groups)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace swaps in a remotely fetched hierarchy. An empty list is ignored so
// a bad fetch cannot wipe validation.
func (t *AreaTable) Replace(groups []platform.AreaGroup) {
	if len(groups) == 0 {
		return
	}
	t.mu.Lock()
	t.groups = groups
	t.mu.Unlock()
}

// Lookup finds a child area by id.
func (t *AreaTable) Lookup(areaID int64) (platform.Area, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, g := range t.groups {
		for _, a := range g.Children {
			if a.ID == areaID {
				return a, true
			}
		}
	}
	return platform.Area{}, false
}

// ValidatePair reports whether childID is a known area under parentID.
func (t *AreaTable) ValidatePair(parentID, childID int64) bool {
	area, ok := t.Lookup(childID)
	return ok && area.ParentID == parentID
}
