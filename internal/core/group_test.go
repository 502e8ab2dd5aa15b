package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/flotilla/internal/model"
)

func TestGroupService_Create(t *testing.T) {
	db := new(mockDB)
	svc := NewGroupService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*int64)) = 5
			return nil
		}})

	group := &model.Group{Name: "production", Description: "prod clusters", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := svc.Create(context.Background(), group)

	require.NoError(t, err)
	assert.Equal(t, int64(5), group.ID)
}

func TestGroupService_Create_Error(t *testing.T) {
	db := new(mockDB)
	svc := NewGroupService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return errors.New("unique violation")
		}})

	err := svc.Create(context.Background(), &model.Group{Name: "production"})
	assert.Error(t, err)
}

func TestGroupService_List(t *testing.T) {
	db := new(mockDB)
	svc := NewGroupService(db)
	now := time.Now()

	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*int64)) = 1
			*(dest[1].(*string)) = "unassigned"
			*(dest[2].(*string)) = ""
			*(dest[3].(*time.Time)) = now
			*(dest[4].(*time.Time)) = now
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*int64)) = 2
			*(dest[1].(*string)) = "production"
			*(dest[2].(*string)) = "prod clusters"
			*(dest[3].(*time.Time)) = now
			*(dest[4].(*time.Time)) = now
			return nil
		},
	)
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	groups, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "unassigned", groups[0].Name)
	assert.Equal(t, "production", groups[1].Name)
}

func TestGroupService_GetByID_NotFound(t *testing.T) {
	db := new(mockDB)
	svc := NewGroupService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return errors.New("no rows in result set")
		}})

	_, err := svc.GetByID(context.Background(), 99)
	assert.Error(t, err)
}
