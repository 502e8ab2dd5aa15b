package core

import (
	"context"
	"fmt"

	"github.com/edvin/flotilla/internal/model"
)

// GroupService manages environment groups. Group 1 ("unassigned") is seeded
// by migration and is the default target for registrations without a group.
type GroupService struct {
	db DB
}

func NewGroupService(db DB) *GroupService {
	return &GroupService{db: db}
}

func (s *GroupService) Create(ctx context.Context, group *model.Group) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO groups (name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		group.Name, group.Description, group.CreatedAt, group.UpdatedAt,
	).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *GroupService) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return &g, nil
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}
