package converter

import (
	"testing"
	"time"

	"clinic-booking-api/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserToResponse(t *testing.T) {
	t.Run("nil user", func(t *testing.T) {
		assert.Nil(t, UserToResponse(nil))
	})

	t.Run("embeds the doctor profile when loaded", func(t *testing.T) {
		user := &entity.User{
			ID:       uuid.New(),
			Email:    "doc@clinic.test",
			FullName: "Dr. Doe",
			Role:     entity.Role{RoleName: entity.RoleDoctor},
			DoctorProfile: &entity.DoctorProfile{
				STRNumber:      "STR-001",
				Specialization: "Cardiology",
				Biography:      "bio",
			},
		}

		resp := UserToResponse(user)
		require.NotNil(t, resp)
		assert.Equal(t, entity.RoleDoctor, resp.Role)
		require.NotNil(t, resp.DoctorProfile)
		assert.Equal(t, "STR-001", resp.DoctorProfile.STRNumber)
		assert.Equal(t, "Cardiology", resp.DoctorProfile.Specialization)
		assert.Nil(t, resp.PatientProfile)
	})

	t.Run("embeds the patient profile when loaded", func(t *testing.T) {
		userID := uuid.New()
		user := &entity.User{
			ID:       userID,
			Email:    "patient@clinic.test",
			FullName: "Jane Doe",
			Role:     entity.Role{RoleName: entity.RolePatient},
			PatientProfile: &entity.PatientProfile{
				UserID:      userID,
				NIK:         "3201234567890001",
				DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
				Gender:      entity.GenderFemale,
			},
		}

		resp := UserToResponse(user)
		require.NotNil(t, resp)
		require.NotNil(t, resp.PatientProfile)
		assert.Equal(t, "3201234567890001", resp.PatientProfile.NIK)
		assert.Equal(t, "1990-05-01", resp.PatientProfile.DateOfBirth)
		assert.Nil(t, resp.DoctorProfile)
	})
}
