package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/models"
)

// memTable is an auto-increment table of value rows.
type memTable[T any] struct {
	rows map[uint]T
	next uint
	id   func(*T) *uint
}

func newMemTable[T any](id func(*T) *uint) *memTable[T] {
	return &memTable[T]{rows: map[uint]T{}, id: id}
}

func (t *memTable[T]) clone() *memTable[T] {
	return &memTable[T]{rows: maps.Clone(t.rows), next: t.next, id: t.id}
}

func (t *memTable[T]) insert(v *T) {
	t.next++
	*t.id(v) = t.next
	t.rows[t.next] = *v
}

func (t *memTable[T]) get(id uint) (*T, error) {
	v, ok := t.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &v, nil
}

func (t *memTable[T]) update(v *T) error {
	id := *t.id(v)
	if _, ok := t.rows[id]; !ok {
		return apperrors.ErrNotFound
	}
	t.rows[id] = *v
	return nil
}

func (t *memTable[T]) delete(id uint) error {
	if _, ok := t.rows[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// sorted returns the rows matching keep in ascending id order.
func (t *memTable[T]) sorted(keep func(T) bool) []T {
	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v := t.rows[id]; keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

type memData struct {
	credentials  *memTable[models.Credential]
	franchises   *memTable[models.Franchise]
	students     *memTable[models.Student]
	courses      *memTable[models.Course]
	subjects     *memTable[models.Subject]
	admitCards   *memTable[models.AdmitCard]
	certificates *memTable[models.Certificate]
	results      *memTable[models.Result]
	materials    *memTable[models.StudyMaterial]
	assignments  *memTable[models.Assignment]
	members      *memTable[models.InstituteMember]
	gallery      *memTable[models.GalleryItem]
	auditLogs    *memTable[models.AuditLog]
	settings     *models.SiteSettings
}

func newMemData() *memData {
	return &memData{
		credentials:  newMemTable(func(v *models.Credential) *uint { return &v.ID }),
		franchises:   newMemTable(func(v *models.Franchise) *uint { return &v.ID }),
		students:     newMemTable(func(v *models.Student) *uint { return &v.ID }),
		courses:      newMemTable(func(v *models.Course) *uint { return &v.ID }),
		subjects:     newMemTable(func(v *models.Subject) *uint { return &v.ID }),
		admitCards:   newMemTable(func(v *models.AdmitCard) *uint { return &v.ID }),
		certificates: newMemTable(func(v *models.Certificate) *uint { return &v.ID }),
		results:      newMemTable(func(v *models.Result) *uint { return &v.ID }),
		materials:    newMemTable(func(v *models.StudyMaterial) *uint { return &v.ID }),
		assignments:  newMemTable(func(v *models.Assignment) *uint { return &v.ID }),
		members:      newMemTable(func(v *models.InstituteMember) *uint { return &v.ID }),
		gallery:      newMemTable(func(v *models.GalleryItem) *uint { return &v.ID }),
		auditLogs:    newMemTable(func(v *models.AuditLog) *uint { return &v.ID }),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		credentials:  d.credentials.clone(),
		franchises:   d.franchises.clone(),
		students:     d.students.clone(),
		courses:      d.courses.clone(),
		subjects:     d.subjects.clone(),
		admitCards:   d.admitCards.clone(),
		certificates: d.certificates.clone(),
		results:      d.results.clone(),
		materials:    d.materials.clone(),
		assignments:  d.assignments.clone(),
		members:      d.members.clone(),
		gallery:      d.gallery.clone(),
		auditLogs:    d.auditLogs.clone(),
	}
	if d.settings != nil {
		s := *d.settings
		c.settings = &s
	}
	return c
}

var _ Store = (*Memory)(nil)

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// Memory is a Store kept entirely in process memory. A single mutex
// serialises every operation, which also makes the unique checks atomic.
type Memory struct {
	mu   sync.Locker
	data *memData
	inTx bool
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{mu: &sync.Mutex{}, data: newMemData(), now: time.Now}
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	tx := &Memory{mu: noLock{}, data: m.data, inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

// Lock is a no-op: WithTx already runs one transaction at a time.
func (m *Memory) Lock(ctx context.Context, name string) error {
	return nil
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

// ---------------- credentials ----------------

func (m *Memory) CreateCredential(ctx context.Context, c *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.credentials.rows {
		if existing.Username == c.Username {
			return apperrors.ErrDuplicateUsername
		}
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.data.credentials.insert(c)
	return nil
}

func (m *Memory) CredentialByID(ctx context.Context, id uint) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.credentials.get(id)
}

func (m *Memory) CredentialByUsername(ctx context.Context, username string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.credentials.rows {
		if c.Username == username {
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func ownedBy(role models.Role, ownerID uint) func(models.Credential) bool {
	return func(c models.Credential) bool {
		return c.Role == role && c.OwnerID != nil && *c.OwnerID == ownerID
	}
}

func (m *Memory) CredentialByOwner(ctx context.Context, role models.Role, ownerID uint) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.data.credentials.sorted(ownedBy(role, ownerID))
	if len(found) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &found[0], nil
}

func (m *Memory) DeleteCredentialsByOwner(ctx context.Context, role models.Role, ownerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.credentials.sorted(ownedBy(role, ownerID)) {
		delete(m.data.credentials.rows, c.ID)
	}
	return nil
}

func (m *Memory) CountCredentialsByRole(ctx context.Context, role models.Role) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.data.credentials.sorted(func(c models.Credential) bool { return c.Role == role }))
	return int64(n), nil
}

// ---------------- franchises ----------------

func matchFranchise(f FranchiseFilter) func(models.Franchise) bool {
	return func(v models.Franchise) bool {
		if f.Status != "" && v.Status != f.Status {
			return false
		}
		if f.Search != "" && !contains(v.InstituteName, f.Search) &&
			!contains(v.InstituteID, f.Search) && !contains(v.City, f.Search) {
			return false
		}
		return true
	}
}

func (m *Memory) CreateFranchise(ctx context.Context, f *models.Franchise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.franchises.rows {
		if existing.InstituteID == f.InstituteID {
			return apperrors.ErrDuplicateInstituteID
		}
	}
	now := m.now()
	f.CreatedAt, f.UpdatedAt = now, now
	m.data.franchises.insert(f)
	return nil
}

func (m *Memory) FranchiseByID(ctx context.Context, id uint) (*models.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.franchises.get(id)
}

func (m *Memory) FranchiseByInstituteID(ctx context.Context, instituteID string) (*models.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.data.franchises.rows {
		if f.InstituteID == instituteID {
			return &f, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) ListFranchises(ctx context.Context, filter FranchiseFilter) ([]models.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.data.franchises.sorted(matchFranchise(filter))
	slices.Reverse(list)
	return list, nil
}

func (m *Memory) CountFranchises(ctx context.Context, filter FranchiseFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.franchises.sorted(matchFranchise(filter)))), nil
}

func (m *Memory) UpdateFranchise(ctx context.Context, f *models.Franchise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.franchises.rows {
		if existing.ID != f.ID && existing.InstituteID == f.InstituteID {
			return apperrors.ErrDuplicateInstituteID
		}
	}
	f.UpdatedAt = m.now()
	return m.data.franchises.update(f)
}

func (m *Memory) DeleteFranchise(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data.students.rows {
		if s.FranchiseID == id {
			return apperrors.ErrConflict
		}
	}
	return m.data.franchises.delete(id)
}

// ---------------- students ----------------

func matchStudent(f StudentFilter) func(models.Student) bool {
	return func(s models.Student) bool {
		if f.FranchiseID != nil && s.FranchiseID != *f.FranchiseID {
			return false
		}
		if f.CourseID != nil && s.CourseID != *f.CourseID {
			return false
		}
		if f.Status != "" && s.Status != f.Status {
			return false
		}
		if f.Search != "" && !contains(s.Name, f.Search) && !contains(s.EnrollmentNo, f.Search) {
			return false
		}
		return true
	}
}

// withRefs attaches copies of the referenced course and franchise, the way
// the GORM store preloads them.
func (m *Memory) withRefs(s models.Student) models.Student {
	s.Course, s.Franchise = nil, nil
	if c, ok := m.data.courses.rows[s.CourseID]; ok {
		s.Course = &c
	}
	if f, ok := m.data.franchises.rows[s.FranchiseID]; ok {
		s.Franchise = &f
	}
	return s
}

// checkStudentRefs mirrors the foreign keys of the students table.
func (m *Memory) checkStudentRefs(s *models.Student) error {
	if _, ok := m.data.courses.rows[s.CourseID]; !ok {
		return apperrors.ErrConflict
	}
	if _, ok := m.data.franchises.rows[s.FranchiseID]; !ok {
		return apperrors.ErrConflict
	}
	return nil
}

func (m *Memory) CreateStudent(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.students.rows {
		if existing.EnrollmentNo == s.EnrollmentNo {
			return apperrors.ErrDuplicateEnrollmentNo
		}
	}
	if err := m.checkStudentRefs(s); err != nil {
		return err
	}
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now
	row := *s
	row.Course, row.Franchise = nil, nil
	m.data.students.insert(&row)
	s.ID = row.ID
	return nil
}

func (m *Memory) StudentByID(ctx context.Context, id uint) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.data.students.get(id)
	if err != nil {
		return nil, err
	}
	withRefs := m.withRefs(*s)
	return &withRefs, nil
}

func (m *Memory) StudentByEnrollmentNo(ctx context.Context, enrollmentNo string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data.students.rows {
		if s.EnrollmentNo == enrollmentNo {
			withRefs := m.withRefs(s)
			return &withRefs, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.data.students.sorted(matchStudent(filter))
	slices.Reverse(list)
	for i := range list {
		list[i] = m.withRefs(list[i])
	}
	return list, nil
}

func (m *Memory) CountStudents(ctx context.Context, filter StudentFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.students.sorted(matchStudent(filter)))), nil
}

func (m *Memory) UpdateStudent(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.students.rows {
		if existing.ID != s.ID && existing.EnrollmentNo == s.EnrollmentNo {
			return apperrors.ErrDuplicateEnrollmentNo
		}
	}
	if err := m.checkStudentRefs(s); err != nil {
		return err
	}
	s.UpdatedAt = m.now()
	row := *s
	row.Course, row.Franchise = nil, nil
	return m.data.students.update(&row)
}

func (m *Memory) DeleteStudent(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.students.delete(id)
}

// ---------------- catalog ----------------

func (m *Memory) CreateCourse(ctx context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.courses.rows {
		if existing.Code == c.Code {
			return apperrors.ErrDuplicateCode
		}
	}
	m.data.courses.insert(c)
	return nil
}

func (m *Memory) CourseByID(ctx context.Context, id uint) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.courses.get(id)
}

func (m *Memory) ListCourses(ctx context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.data.courses.sorted(nil)
	slices.SortStableFunc(list, func(a, b models.Course) int { return strings.Compare(a.Name, b.Name) })
	return list, nil
}

func (m *Memory) CountCourses(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.courses.rows)), nil
}

func (m *Memory) UpdateCourse(ctx context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.courses.rows {
		if existing.ID != c.ID && existing.Code == c.Code {
			return apperrors.ErrDuplicateCode
		}
	}
	return m.data.courses.update(c)
}

func (m *Memory) DeleteCourse(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data.students.rows {
		if s.CourseID == id {
			return apperrors.ErrConflict
		}
	}
	for _, s := range m.data.subjects.rows {
		if s.CourseID == id {
			return apperrors.ErrConflict
		}
	}
	return m.data.courses.delete(id)
}

func (m *Memory) CreateSubject(ctx context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.courses.rows[s.CourseID]; !ok {
		return apperrors.ErrConflict
	}
	m.data.subjects.insert(s)
	return nil
}

func (m *Memory) SubjectByID(ctx context.Context, id uint) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.subjects.get(id)
}

func (m *Memory) ListSubjects(ctx context.Context, courseID *uint) ([]models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.subjects.sorted(func(s models.Subject) bool {
		return courseID == nil || s.CourseID == *courseID
	}), nil
}

func (m *Memory) UpdateSubject(ctx context.Context, s *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.courses.rows[s.CourseID]; !ok {
		return apperrors.ErrConflict
	}
	return m.data.subjects.update(s)
}

func (m *Memory) DeleteSubject(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.subjects.delete(id)
}

// ---------------- content ----------------

type memRecords[T any] struct {
	mu           sync.Locker
	table        *memTable[T]
	enrollmentNo func(T) string
}

func (r memRecords[T]) Create(ctx context.Context, v *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table.insert(v)
	return nil
}

func (r memRecords[T]) Get(ctx context.Context, id uint) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.get(id)
}

func (r memRecords[T]) List(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.table.sorted(nil)
	slices.Reverse(list)
	return list, nil
}

func (r memRecords[T]) Update(ctx context.Context, v *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.update(v)
}

func (r memRecords[T]) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.delete(id)
}

func (r memRecords[T]) ByEnrollmentNo(ctx context.Context, enrollmentNo string) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.table.sorted(func(v T) bool { return r.enrollmentNo(v) == enrollmentNo })
	slices.Reverse(list)
	return list, nil
}

func (m *Memory) AdmitCards() EnrolledRecords[models.AdmitCard] {
	return memRecords[models.AdmitCard]{mu: m.mu, table: m.data.admitCards, enrollmentNo: models.AdmitCard.GetEnrollmentNo}
}

func (m *Memory) Certificates() EnrolledRecords[models.Certificate] {
	return memRecords[models.Certificate]{mu: m.mu, table: m.data.certificates, enrollmentNo: models.Certificate.GetEnrollmentNo}
}

func (m *Memory) Results() EnrolledRecords[models.Result] {
	return memRecords[models.Result]{mu: m.mu, table: m.data.results, enrollmentNo: models.Result.GetEnrollmentNo}
}

func (m *Memory) Materials() Records[models.StudyMaterial] {
	return memRecords[models.StudyMaterial]{mu: m.mu, table: m.data.materials}
}

func (m *Memory) Assignments() Records[models.Assignment] {
	return memRecords[models.Assignment]{mu: m.mu, table: m.data.assignments}
}

func (m *Memory) Members() Records[models.InstituteMember] {
	return memRecords[models.InstituteMember]{mu: m.mu, table: m.data.members}
}

func (m *Memory) Gallery() Records[models.GalleryItem] {
	return memRecords[models.GalleryItem]{mu: m.mu, table: m.data.gallery}
}

func (m *Memory) SiteSettings(ctx context.Context) (*models.SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data.settings == nil {
		def := models.DefaultSiteSettings()
		return &def, nil
	}
	s := *m.data.settings
	return &s, nil
}

func (m *Memory) SaveSiteSettings(ctx context.Context, s *models.SiteSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = 1
	s.UpdatedAt = m.now()
	saved := *s
	m.data.settings = &saved
	return nil
}

// ---------------- audit ----------------

func (m *Memory) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.CreatedAt = m.now()
	m.data.auditLogs.insert(l)
	return nil
}

func (m *Memory) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.data.auditLogs.sorted(func(l models.AuditLog) bool {
		if f.FranchiseID != nil && (l.FranchiseID == nil || *l.FranchiseID != *f.FranchiseID) {
			return false
		}
		if f.EntityType != "" && l.EntityType != f.EntityType {
			return false
		}
		if f.EntityID != nil && l.EntityID != *f.EntityID {
			return false
		}
		return true
	})
	slices.Reverse(list)
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list, nil
}
