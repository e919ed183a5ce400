package attendance

import (
	"context"
	"errors"
	"time"

	"faceattend/internal/faceclient"
	"faceattend/internal/logger"
	"faceattend/internal/model"
	"faceattend/internal/store"
	"faceattend/internal/uploads"
)

// SimilarityThreshold is the minimum face-match confidence (0..100)
// that counts as a positive identification.
const SimilarityThreshold = 90.0

const defaultUpstreamTimeout = 15 * time.Second

// compareSteps is the number of bounded calls CompareAndMark makes:
// user lookup, face comparison and the attendance write.
const compareSteps = 3

// UploadIssuer signs direct-to-bucket upload URLs.
type UploadIssuer interface {
	IssueUploadURL(ctx context.Context, fileName, fileType string) (*uploads.Upload, error)
}

// Service coordinates registration, face comparison and attendance records.
type Service struct {
	repo    store.Repository
	faces   faceclient.Comparer
	issuer  UploadIssuer
	metrics *Metrics
	timeout time.Duration
}

// NewService wires the workflow. timeout bounds every storage and
// comparison call; metrics may be nil.
func NewService(repo store.Repository, faces faceclient.Comparer, issuer UploadIssuer, metrics *Metrics, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	return &Service{
		repo:    repo,
		faces:   faces,
		issuer:  issuer,
		metrics: metrics,
		timeout: timeout,
	}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// MaxRequestDuration is the longest any Service call may take. Servers
// should allow at least this long before cutting off a response.
func (s *Service) MaxRequestDuration() time.Duration {
	return compareSteps * s.timeout
}

// IssueUploadURL returns a signed URL the client can PUT a photo to,
// together with the object key to use in later requests.
func (s *Service) IssueUploadURL(ctx context.Context, fileName, fileType string) (*uploads.Upload, error) {
	if fileName == "" || fileType == "" {
		return nil, invalid("fileName and fileType are required")
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	up, err := s.issuer.IssueUploadURL(ctx, fileName, fileType)
	s.metrics.uploadURL(err)
	if err != nil {
		logger.Log.Errorw("presign upload url failed", "fileName", fileName, "error", err)
		return nil, upstream(err)
	}
	logger.Log.Debugw("pre-signed url generated", "key", up.Key)
	return up, nil
}

// RegisterUser stores a new user with its reference image key.
func (s *Service) RegisterUser(ctx context.Context, name, imageKey string) (*model.User, error) {
	if name == "" || imageKey == "" {
		return nil, invalid("name and imageKey are required")
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	u := &model.User{Name: name, ImageKey: imageKey}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		logger.Log.Errorw("register user failed", "name", name, "error", err)
		return nil, storage(err)
	}
	s.metrics.registered()
	logger.Log.Infow("user added", "id", u.ID, "name", u.Name, "imageKey", u.ImageKey)
	return u, nil
}

// CompareAndMark compares imageKey with the reference photo of the user
// called name and records attendance when the faces match. It reports
// false with a nil error when the faces do not match.
//
// Repeated or concurrent successful calls each write a record.
func (s *Service) CompareAndMark(ctx context.Context, name, imageKey string) (bool, error) {
	if name == "" || imageKey == "" {
		return false, invalid("name and imageKey are required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.MaxRequestDuration())
	defer cancel()

	user, err := s.findUser(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.comparison(resultNotFound)
		} else {
			s.metrics.comparison(resultError)
		}
		return false, err
	}

	res, err := s.compare(ctx, user.ImageKey, imageKey)
	if err != nil {
		s.metrics.comparison(resultError)
		logger.Log.Errorw("face comparison failed", "user", user.ID, "imageKey", imageKey, "error", err)
		return false, upstream(err)
	}

	if !matched(res) {
		s.metrics.comparison(resultUnmatched)
		logger.Log.Infow("face not recognized", "user", user.ID, "imageKey", imageKey, "unmatchedFaces", res.UnmatchedFaces)
		return false, nil
	}

	wctx, cancel := s.bounded(ctx)
	defer cancel()
	att := &model.Attendance{UserID: user.ID, ImageKey: imageKey}
	if err := s.repo.CreateAttendance(wctx, att); err != nil {
		s.metrics.comparison(resultError)
		logger.Log.Errorw("save attendance failed", "user", user.ID, "error", err)
		return false, storage(err)
	}
	s.metrics.comparison(resultMatched)
	logger.Log.Infow("attendance marked", "id", att.ID, "user", user.ID, "imageKey", imageKey)
	return true, nil
}

func (s *Service) findUser(ctx context.Context, name string) (*model.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	user, err := s.repo.FindUserByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storage(err)
	}
	return user, nil
}

func (s *Service) compare(ctx context.Context, sourceKey, targetKey string) (*faceclient.CompareResult, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.faces.CompareFaces(ctx, sourceKey, targetKey, SimilarityThreshold)
	s.metrics.compareLatency(time.Since(start))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("face comparison returned no result")
	}
	return res, nil
}

func matched(res *faceclient.CompareResult) bool {
	for _, m := range res.Matches {
		if m.Similarity >= SimilarityThreshold {
			return true
		}
	}
	return false
}

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, storage(err)
	}
	return users, nil
}

// ListAttendance returns every attendance record with its user resolved.
func (s *Service) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	records, err := s.repo.ListAttendance(ctx)
	if err != nil {
		return nil, storage(err)
	}
	return records, nil
}
