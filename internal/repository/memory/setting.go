package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
)

type settingRepository struct {
	store *Store
}

// List implements setting.Repository.
func (r *settingRepository) List(_ context.Context) ([]setting.Setting, error) {
	var out []setting.Setting
	r.store.read(func(t *tables) {
		for _, s := range t.settings {
			out = append(out, s)
		}
	})
	slices.SortFunc(out, func(a, b setting.Setting) int {
		if c := cmp.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out, nil
}

// Upsert implements setting.Repository.
func (r *settingRepository) Upsert(ctx context.Context, settings []setting.Setting) error {
	return r.store.write(ctx, func(t *tables) error {
		for _, s := range settings {
			if existing, ok := t.settings[s.Key]; ok && s.Description == nil {
				s.Description = existing.Description
			}
			s.UpdatedAt = r.store.stamp()
			t.settings[s.Key] = s
		}
		return nil
	})
}

func NewSettingRepository(store *Store) setting.Repository {
	return &settingRepository{store: store}
}
