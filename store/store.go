// Package store is the single authoritative record of the editing session:
// the loaded document, the current page, the bounded stamp library, every
// placed stamp instance and the per-page preview cache.
//
// Every mutation replaces the affected slice wholesale under the write lock,
// so readers always observe a consistent snapshot and never alias internal
// state.
package store

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	stamper "github.com/jungcome7/pdf-stamper"
)

// Store holds the session state. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex

	maxStamps int

	doc         *stamper.Document
	currentPage int
	revision    uint64 // bumped on every SetDocument

	definitions []stamper.StampDefinition
	selected    string

	instances []stamper.StampInstance
	previews  map[int]stamper.PageImage
}

// Option configures a Store.
type Option func(*Store)

// WithMaxStamps overrides the stamp library capacity.
func WithMaxStamps(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxStamps = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		maxStamps:   stamper.DefaultMaxStamps,
		currentPage: 1,
		previews:    make(map[int]stamper.PageImage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDocument replaces the loaded document. Passing nil unloads it. Either
// way the current page resets to 1 and the preview cache is cleared; stamp
// definitions and instances are kept.
func (s *Store) SetDocument(doc *stamper.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc != nil {
		cp := *doc
		cp.Data = slices.Clone(doc.Data)
		doc = &cp
	}
	s.doc = doc
	s.currentPage = 1
	s.previews = make(map[int]stamper.PageImage)
	s.revision++
}

// Document returns a copy of the loaded document, or nil.
func (s *Store) Document() *stamper.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	cp := *s.doc
	cp.Data = slices.Clone(s.doc.Data)
	return &cp
}

// Revision identifies the current document. It changes whenever
// SetDocument is called, so asynchronous work started against one document
// can detect that it was replaced.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// CurrentPage returns the 1-based current page.
func (s *Store) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// SetCurrentPage moves to page n of the loaded document.
func (s *Store) SetCurrentPage(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return stamper.NewError("SetCurrentPage", stamper.ErrNoDocument)
	}
	if !s.doc.HasPage(n) {
		return stamper.NewError("SetCurrentPage",
			fmt.Errorf("%w: %d of %d", stamper.ErrInvalidPage, n, s.doc.PageCount))
	}
	s.currentPage = n
	return nil
}

// AddStampDefinition appends def to the library. It fails with ErrCapacity
// once the library is full and with ErrDuplicate on a repeated id; the
// library is unchanged in both cases.
func (s *Store) AddStampDefinition(def stamper.StampDefinition) error {
	if def.ID == "" || len(def.Image) == 0 {
		return stamper.NewError("AddStampDefinition", stamper.ErrInvalidParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.definitions) >= s.maxStamps {
		return stamper.NewError("AddStampDefinition",
			fmt.Errorf("%w: %d of %d", stamper.ErrCapacity, len(s.definitions), s.maxStamps))
	}
	if indexOf(s.definitions, def.ID, defID) >= 0 {
		return stamper.NewError("AddStampDefinition", fmt.Errorf("%w: %s", stamper.ErrDuplicate, def.ID))
	}

	def.Image = slices.Clone(def.Image)
	next := make([]stamper.StampDefinition, len(s.definitions), len(s.definitions)+1)
	copy(next, s.definitions)
	s.definitions = append(next, def)
	return nil
}

// RemoveStampDefinition deletes a definition. Instances placed from it are
// untouched. If it was selected, the selection is cleared.
func (s *Store) RemoveStampDefinition(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.definitions, id, defID)
	if i < 0 {
		return false
	}
	s.definitions = slices.Delete(slices.Clone(s.definitions), i, i+1)
	if s.selected == id {
		s.selected = ""
	}
	return true
}

// Definitions returns the library in insertion order.
func (s *Store) Definitions() []stamper.StampDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stamper.StampDefinition, len(s.definitions))
	for i, d := range s.definitions {
		out[i] = cloneDefinition(d)
	}
	return out
}

// Definition looks up a definition by id.
func (s *Store) Definition(id string) (stamper.StampDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.definitions, id, defID); i >= 0 {
		return cloneDefinition(s.definitions[i]), true
	}
	return stamper.StampDefinition{}, false
}

// Capacity returns the number of definitions and the library limit.
func (s *Store) Capacity() (used, limit int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.definitions), s.maxStamps
}

// SetSelectedDefinition selects a definition by id. An empty id clears the
// selection.
func (s *Store) SetSelectedDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && indexOf(s.definitions, id, defID) < 0 {
		return stamper.NewError("SetSelectedDefinition", fmt.Errorf("%w: definition %s", stamper.ErrNotFound, id))
	}
	s.selected = id
	return nil
}

// ToggleDefinition selects id, or clears the selection if id is already
// selected.
func (s *Store) ToggleDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == id {
		s.selected = ""
		return nil
	}
	if indexOf(s.definitions, id, defID) < 0 {
		return stamper.NewError("ToggleDefinition", fmt.Errorf("%w: definition %s", stamper.ErrNotFound, id))
	}
	s.selected = id
	return nil
}

// SelectedDefinition returns the selected definition, if any.
func (s *Store) SelectedDefinition() (stamper.StampDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return stamper.StampDefinition{}, false
	}
	if i := indexOf(s.definitions, s.selected, defID); i >= 0 {
		return cloneDefinition(s.definitions[i]), true
	}
	return stamper.StampDefinition{}, false
}

// AddStampInstance records a placed stamp. The page must exist in the
// loaded document and the scales must be positive.
func (s *Store) AddStampInstance(inst stamper.StampInstance) error {
	if inst.ID == "" || len(inst.Image) == 0 || inst.ScaleX <= 0 || inst.ScaleY <= 0 {
		return stamper.NewError("AddStampInstance", stamper.ErrInvalidParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return stamper.NewError("AddStampInstance", stamper.ErrNoDocument)
	}
	if !s.doc.HasPage(inst.Page) {
		return stamper.NewError("AddStampInstance",
			fmt.Errorf("%w: %d of %d", stamper.ErrInvalidPage, inst.Page, s.doc.PageCount))
	}
	if indexOf(s.instances, inst.ID, instID) >= 0 {
		return stamper.NewError("AddStampInstance", fmt.Errorf("%w: %s", stamper.ErrDuplicate, inst.ID))
	}

	inst.Image = slices.Clone(inst.Image)
	next := make([]stamper.StampInstance, len(s.instances), len(s.instances)+1)
	copy(next, s.instances)
	s.instances = append(next, inst)
	return nil
}

// RemoveStampInstance deletes an instance by id.
func (s *Store) RemoveStampInstance(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.instances, id, instID)
	if i < 0 {
		return false
	}
	s.instances = slices.Delete(slices.Clone(s.instances), i, i+1)
	return true
}

// Instance looks up an instance by id.
func (s *Store) Instance(id string) (stamper.StampInstance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.instances, id, instID); i >= 0 {
		return cloneInstance(s.instances[i]), true
	}
	return stamper.StampInstance{}, false
}

// Instances returns every instance in insertion order.
func (s *Store) Instances() []stamper.StampInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stamper.StampInstance, len(s.instances))
	for i, inst := range s.instances {
		out[i] = cloneInstance(inst)
	}
	return out
}

// InstancesForPage returns the instances on page n in insertion order.
func (s *Store) InstancesForPage(n int) []stamper.StampInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []stamper.StampInstance
	for _, inst := range s.instances {
		if inst.Page == n {
			out = append(out, cloneInstance(inst))
		}
	}
	return out
}

// DormantInstances returns the instances whose page does not exist in the
// loaded document. They are kept so that loading a longer document brings
// them back.
func (s *Store) DormantInstances() []stamper.StampInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	var out []stamper.StampInstance
	for _, inst := range s.instances {
		if !s.doc.HasPage(inst.Page) {
			out = append(out, cloneInstance(inst))
		}
	}
	return out
}

// UpdatePagePreview stores the preview for page n, replacing any previous one.
func (s *Store) UpdatePagePreview(n int, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[int]stamper.PageImage, len(s.previews)+1)
	for k, v := range s.previews {
		next[k] = v
	}
	next[n] = stamper.PageImage{Page: n, ImageURL: imageURL}
	s.previews = next
}

// PagePreview returns the cached preview of page n.
func (s *Store) PagePreview(n int) (stamper.PageImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.previews[n]
	return img, ok
}

// PagePreviews returns every cached preview ordered by page.
func (s *Store) PagePreviews() []stamper.PageImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stamper.PageImage, 0, len(s.previews))
	for _, img := range s.previews {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

func cloneDefinition(d stamper.StampDefinition) stamper.StampDefinition {
	d.Image = slices.Clone(d.Image)
	return d
}

func cloneInstance(i stamper.StampInstance) stamper.StampInstance {
	i.Image = slices.Clone(i.Image)
	return i
}

func defID(d stamper.StampDefinition) string { return d.ID }
func instID(i stamper.StampInstance) string  { return i.ID }

func indexOf[T any](items []T, id string, key func(T) string) int {
	return slices.IndexFunc(items, func(item T) bool { return key(item) == id })
}
