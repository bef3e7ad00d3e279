package job

import (
	"github.com/akolanti/GoRAG/internal/data/fileStore"
	"github.com/akolanti/GoRAG/internal/domain/jobModel"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

// Service holds what handlers and workers share: the job queue, the stores behind it and
// the upload side of the registry. Jobs flow handler -> JobChannel -> worker; every state
// change lands in JobStore so status polling never touches the queue.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
	Registry          ragModel.Registry
	FileStore         *fileStore.Store
}

type ServiceConfig Service

func InitJobService(cfg ServiceConfig) *Service {
	s := Service(cfg)
	return &s
}
