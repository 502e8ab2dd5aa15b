package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/flotilla/internal/blobstore"
)

type Services struct {
	Environment *EnvironmentService
	Group       *GroupService
}

func NewServices(db DB, blobs blobstore.Store, pinger DockerProber, azure AzureProber, snapshotter Snapshotter, keygen EdgeKeyGenerator, logger zerolog.Logger) *Services {
	return &Services{
		Environment: NewEnvironmentService(db, blobs, pinger, azure, snapshotter, keygen, logger),
		Group:       NewGroupService(db),
	}
}
