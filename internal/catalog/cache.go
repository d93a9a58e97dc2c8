package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/domain"
)

const (
	defaultCacheTTL = 5 * time.Minute
	cacheKeyPrefix  = "edupay:course:"
	cacheOpTimeout  = 500 * time.Millisecond
)

// CachedCatalog — read-through кэш каталога курсов поверх Redis.
// Каталог меняется редко, а читается на каждом добавлении в корзину и
// оформлении заказа; короткий TTL ограничивает устаревание цены и
// счётчика студентов. Любая ошибка Redis деградирует в чтение напрямую.
type CachedCatalog struct {
	inner  domain.CourseCatalog
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewCachedCatalog оборачивает каталог кэшем. Nil-клиент отключает кэш,
// все вызовы идут напрямую.
func NewCachedCatalog(inner domain.CourseCatalog, client *redis.Client, ttl time.Duration, log *logrus.Entry) *CachedCatalog {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedCatalog{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    log.WithField("component", "catalog-cache"),
	}
}

type cachedCourse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	PriceMinor    int64     `json:"price_minor"`
	Currency      string    `json:"currency"`
	Published     bool      `json:"published"`
	StudentsCount int64     `json:"students_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Get возвращает курс из кэша либо из каталога с прогревом кэша.
func (c *CachedCatalog) Get(id string) (domain.Course, error) {
	if course, ok := c.lookup(id); ok {
		return course, nil
	}

	course, err := c.inner.Get(id)
	if err != nil {
		return domain.Course{}, err
	}

	c.store(course)
	return course, nil
}

// PublishedByIDs возвращает опубликованные курсы из запрошенных.
// Промахи читаются из каталога одним вызовом и прогревают кэш.
func (c *CachedCatalog) PublishedByIDs(ids []string) ([]domain.Course, error) {
	courses := make([]domain.Course, 0, len(ids))
	missed := make([]string, 0)

	for _, id := range ids {
		course, ok := c.lookup(id)
		if !ok {
			missed = append(missed, id)
			continue
		}
		if course.Published {
			courses = append(courses, course)
		}
	}

	if len(missed) > 0 {
		loaded, err := c.inner.PublishedByIDs(missed)
		if err != nil {
			return nil, err
		}
		for _, course := range loaded {
			c.store(course)
			courses = append(courses, course)
		}
	}

	return reorder(ids, courses), nil
}

// Invalidate сбрасывает кэш курса, например после изменения в каталоге.
func (c *CachedCatalog) Invalidate(id string) {
	if c.client == nil || id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		c.log.WithError(err).WithField("course_id", id).Warn("invalidate course cache failed")
	}
}

func (c *CachedCatalog) lookup(id string) (domain.Course, bool) {
	if c.client == nil || id == "" {
		return domain.Course{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("course_id", id).Warn("course cache read failed")
		}
		return domain.Course{}, false
	}

	var cached cachedCourse
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.log.WithError(err).WithField("course_id", id).Warn("decode cached course failed")
		return domain.Course{}, false
	}

	return domain.Course{
		ID:            cached.ID,
		Title:         cached.Title,
		PriceMinor:    cached.PriceMinor,
		Currency:      cached.Currency,
		Published:     cached.Published,
		StudentsCount: cached.StudentsCount,
		CreatedAt:     cached.CreatedAt,
		UpdatedAt:     cached.UpdatedAt,
	}, true
}

func (c *CachedCatalog) store(course domain.Course) {
	if c.client == nil || course.ID == "" {
		return
	}

	encoded, err := json.Marshal(cachedCourse{
		ID:            course.ID,
		Title:         course.Title,
		PriceMinor:    course.PriceMinor,
		Currency:      course.Currency,
		Published:     course.Published,
		StudentsCount: course.StudentsCount,
		CreatedAt:     course.CreatedAt,
		UpdatedAt:     course.UpdatedAt,
	})
	if err != nil {
		c.log.WithError(err).WithField("course_id", course.ID).Warn("encode course for cache failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, cacheKeyPrefix+course.ID, encoded, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("course_id", course.ID).Warn("course cache write failed")
	}
}

// reorder возвращает курсы в порядке запрошенных идентификаторов.
func reorder(ids []string, courses []domain.Course) []domain.Course {
	byID := make(map[string]domain.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
	}

	ordered := make([]domain.Course, 0, len(courses))
	for _, id := range ids {
		if course, ok := byID[id]; ok {
			ordered = append(ordered, course)
			delete(byID, id)
		}
	}
	return ordered
}

var _ domain.CourseCatalog = (*CachedCatalog)(nil)
