package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TagRepository looks up tags by name, creating them on first use.
type TagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Tag, error)
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository instantiates repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

// GetOrCreate normalizes the name to a slug and upserts on it, so
// "VIP Customer" and "vip customer" resolve to the same tag.
func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)

	const query = `
        INSERT INTO tags (name, slug)
        VALUES ($1,$2)
        ON CONFLICT (slug) DO UPDATE SET slug = tags.slug
        RETURNING id, name, slug`
	var tag domain.Tag
	if err := r.pool.QueryRow(ctx, query, name, slug).Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
		return nil, err
	}
	return &tag, nil
}

// Slugify lowercases and hyphenates a tag or category name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}
