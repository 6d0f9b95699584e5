package usecase

import (
	"testing"

	"clinic-booking-api/internal/delivery/dto"
	"clinic-booking-api/internal/domain/entity"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ *gorm.DB, user *entity.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ *gorm.DB, email string) (*entity.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) Update(_ *gorm.DB, user *entity.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Delete(_ *gorm.DB, id uuid.UUID) (int64, error) {
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

type doctorProfileFixture struct {
	usecase  DoctorProfileUsecase
	doctors  *fakeDoctorRepo
	audit    *fakeAuditService
	mock     sqlmock.Sqlmock
	doctorID uuid.UUID
}

func newDoctorProfileFixture(t *testing.T, password string) *doctorProfileFixture {
	t.Helper()

	doctorID := uuid.New()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	doctors := newFakeDoctorRepo()
	doctors.profiles[doctorID] = &entity.DoctorProfile{
		UserID:         doctorID,
		STRNumber:      "STR-001",
		Specialization: "Cardiology",
		Biography:      "old bio",
		User: entity.User{
			ID:       doctorID,
			Email:    "doc@clinic.test",
			FullName: "Dr. Doe",
			Password: string(hashed),
			IsActive: true,
		},
	}

	f := &doctorProfileFixture{
		doctors:  doctors,
		audit:    &fakeAuditService{},
		doctorID: doctorID,
	}
	db, mock := txTestDB(t)
	f.mock = mock
	f.usecase = NewDoctorProfileUsecase(db, logrus.New(), newFakeUserRepo(), doctors, f.audit)
	return f
}

func TestUpdateDoctorSelfProfile(t *testing.T) {
	t.Run("updates the biography", func(t *testing.T) {
		f := newDoctorProfileFixture(t, "secret-old")
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		resp, err := f.usecase.UpdateSelfProfile(doctorContext(f.doctorID), f.doctorID, &dto.DoctorUpdateSelfRequest{
			Biography: "new bio",
		})
		require.NoError(t, err)
		assert.Equal(t, "new bio", resp.Biography)
		assert.Equal(t, "STR-001", resp.STRNumber)
		assert.Equal(t, 1, f.audit.entries)
	})

	t.Run("changes the password after verifying the old one", func(t *testing.T) {
		f := newDoctorProfileFixture(t, "secret-old")
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		_, err := f.usecase.UpdateSelfProfile(doctorContext(f.doctorID), f.doctorID, &dto.DoctorUpdateSelfRequest{
			OldPassword: "secret-old",
			Password:    "secret-new",
		})
		require.NoError(t, err)

		stored := f.doctors.profiles[f.doctorID].User.Password
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("secret-new")))
	})

	t.Run("rejects a wrong old password", func(t *testing.T) {
		f := newDoctorProfileFixture(t, "secret-old")
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.usecase.UpdateSelfProfile(doctorContext(f.doctorID), f.doctorID, &dto.DoctorUpdateSelfRequest{
			OldPassword: "wrong",
			Password:    "secret-new",
		})
		assert.ErrorIs(t, err, ErrInvalidOldPassword)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newDoctorProfileFixture(t, "secret-old")
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.usecase.UpdateSelfProfile(doctorContext(f.doctorID), uuid.New(), &dto.DoctorUpdateSelfRequest{
			Biography: "new bio",
		})
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}
