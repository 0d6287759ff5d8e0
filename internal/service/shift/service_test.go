package shift

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPerson = "0195b1c2-0000-7000-8000-000000000001"

type shiftTestEnv struct {
	svc            shift.Service
	shiftRepo      shift.ShiftRepository
	assignmentRepo shift.AssignmentRepository
}

func newShiftTestEnv() shiftTestEnv {
	store := memory.NewStore(time.UTC)
	shiftRepo := memory.NewShiftRepository(store)
	assignmentRepo := memory.NewAssignmentRepository(store)
	return shiftTestEnv{
		svc:            NewShiftService(store.Transactor(), shiftRepo, assignmentRepo, time.UTC),
		shiftRepo:      shiftRepo,
		assignmentRepo: assignmentRepo,
	}
}

func shiftRequest(name, start, end string, isDefault bool) shift.CreateShiftRequest {
	hours := decimal.NewFromInt(9)
	return shift.CreateShiftRequest{
		Name:              name,
		StartTime:         start,
		EndTime:           end,
		WorkDurationHours: &hours,
		BreakMinutes:      60,
		IsDefault:         isDefault,
	}
}

func (e shiftTestEnv) create(t *testing.T, req shift.CreateShiftRequest) shift.ShiftResponse {
	t.Helper()
	resp, err := e.svc.CreateShift(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (e shiftTestEnv) assign(t *testing.T, shiftID, start string, end *string) shift.AssignmentResponse {
	t.Helper()
	resp, err := e.svc.AssignShift(context.Background(), shift.AssignShiftRequest{
		PersonID:           testPerson,
		ShiftID:            shiftID,
		EffectiveStartDate: start,
		EffectiveEndDate:   end,
		AssignedBy:         "admin-1",
	})
	require.NoError(t, err)
	return resp
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.HasField(field), "expected field %q in %v", field, verrs)
}

func TestShiftService_CreateShift_Success(t *testing.T) {
	env := newShiftTestEnv()

	resp := env.create(t, shiftRequest("Day", "08:00", "17:00", true))

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "08:00:00", resp.StartTime)
	assert.Equal(t, "17:00:00", resp.EndTime)
	assert.Equal(t, "9.00", resp.WorkDurationHours)
	assert.Equal(t, 480, resp.ScheduledNetMinutes)
	assert.Len(t, resp.Weekdays, 7)
	assert.True(t, resp.IsActive)
	assert.True(t, resp.IsDefault)
}

func TestShiftService_CreateShift_InvalidWindow(t *testing.T) {
	env := newShiftTestEnv()

	_, err := env.svc.CreateShift(context.Background(), shiftRequest("Backwards", "17:00", "08:00", false))
	requireFieldError(t, err, "end_time")

	night := shiftRequest("Night", "22:00", "06:00", false)
	night.CrossesMidnight = true
	_, err = env.svc.CreateShift(context.Background(), night)
	assert.NoError(t, err)
}

func TestShiftService_CreateShift_DuplicateName(t *testing.T) {
	env := newShiftTestEnv()
	env.create(t, shiftRequest("Day", "08:00", "17:00", false))

	_, err := env.svc.CreateShift(context.Background(), shiftRequest("day", "09:00", "18:00", false))
	requireFieldError(t, err, "name")
}

func TestShiftService_CreateShift_NewDefaultReplacesOld(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	first := env.create(t, shiftRequest("Day", "08:00", "17:00", true))
	second := env.create(t, shiftRequest("Late", "10:00", "19:00", true))

	def, err := env.shiftRepo.GetDefault(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, second.ID, def.ID)

	old, err := env.shiftRepo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)
}

func TestShiftService_UpdateShift_Partial(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	created := env.create(t, shiftRequest("Day", "08:00", "17:00", false))

	name := "Office"
	breakMinutes := 30
	updated, err := env.svc.UpdateShift(ctx, shift.UpdateShiftRequest{
		ID:           created.ID,
		Name:         &name,
		BreakMinutes: &breakMinutes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Office", updated.Name)
	assert.Equal(t, 510, updated.ScheduledNetMinutes)
	assert.Equal(t, created.StartTime, updated.StartTime)

	// Moving only the end before the start breaks the window.
	end := "07:00"
	_, err = env.svc.UpdateShift(ctx, shift.UpdateShiftRequest{ID: created.ID, EndTime: &end})
	requireFieldError(t, err, "end_time")
}

func TestShiftService_UpdateShift_NotFound(t *testing.T) {
	env := newShiftTestEnv()
	name := "Ghost"

	_, err := env.svc.UpdateShift(context.Background(), shift.UpdateShiftRequest{
		ID:   "0195b1c2-0000-7000-8000-00000000dead",
		Name: &name,
	})
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestShiftService_GetShift_InvalidID(t *testing.T) {
	env := newShiftTestEnv()

	_, err := env.svc.GetShift(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestShiftService_ListShifts_FilterAndPaging(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	env.create(t, shiftRequest("A", "08:00", "17:00", false))
	env.create(t, shiftRequest("B", "09:00", "18:00", false))
	inactive := shiftRequest("C", "10:00", "19:00", false)
	off := false
	inactive.IsActive = &off
	env.create(t, inactive)

	active := true
	list, err := env.svc.ListShifts(ctx, shift.ShiftFilter{IsActive: &active, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.TotalCount)
	assert.Equal(t, 2, list.TotalPages)
	assert.Equal(t, 1, list.Page)
	require.Len(t, list.Shifts, 1)
	assert.Equal(t, "A", list.Shifts[0].Name)
}

func TestShiftService_ResolveActiveShift(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	impl := env.svc.(*ShiftServiceImpl)

	res, err := impl.ResolveActiveShift(ctx, testPerson, date(2025, 3, 10))
	require.NoError(t, err)
	assert.False(t, res.Found())

	def := env.create(t, shiftRequest("Day", "08:00", "17:00", true))
	night := shiftRequest("Night", "22:00", "06:00", false)
	night.CrossesMidnight = true
	nightResp := env.create(t, night)

	res, err = impl.ResolveActiveShift(ctx, testPerson, date(2025, 3, 10))
	require.NoError(t, err)
	sh, ok := res.Get()
	require.True(t, ok)
	assert.Equal(t, def.ID, sh.ID)
	assert.Equal(t, shift.SourceDefault, res.Source)

	end := "2025-03-14"
	env.assign(t, nightResp.ID, "2025-03-10", &end)

	res, err = impl.ResolveActiveShift(ctx, testPerson, date(2025, 3, 12))
	require.NoError(t, err)
	sh, _ = res.Get()
	assert.Equal(t, nightResp.ID, sh.ID)
	assert.Equal(t, shift.SourceAssignment, res.Source)

	// Past the assignment's end date the default applies again.
	res, err = impl.ResolveActiveShift(ctx, testPerson, date(2025, 3, 15))
	require.NoError(t, err)
	sh, _ = res.Get()
	assert.Equal(t, def.ID, sh.ID)
}

func TestShiftService_ResolveActiveShift_InactiveAssignmentFallsBack(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	def := env.create(t, shiftRequest("Day", "08:00", "17:00", true))
	other := env.create(t, shiftRequest("Late", "10:00", "19:00", false))
	env.assign(t, other.ID, "2025-03-01", nil)

	off := false
	_, err := env.svc.UpdateShift(ctx, shift.UpdateShiftRequest{ID: other.ID, IsActive: &off})
	require.NoError(t, err)

	active, err := env.svc.GetActiveShift(ctx, shift.ActiveShiftRequest{PersonID: testPerson, Date: "2025-03-10"})
	require.NoError(t, err)
	require.NotNil(t, active.Shift)
	assert.Equal(t, def.ID, active.Shift.ID)
	require.NotNil(t, active.Source)
	assert.Equal(t, shift.SourceDefault, *active.Source)
}

func TestShiftService_GetActiveShift_None(t *testing.T) {
	env := newShiftTestEnv()

	active, err := env.svc.GetActiveShift(context.Background(), shift.ActiveShiftRequest{PersonID: testPerson, Date: "2025-03-10"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", active.Date)
	assert.Nil(t, active.Shift)
	assert.Nil(t, active.Source)
}

func TestShiftService_AssignShift_ClosesPrevious(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()
	day := env.create(t, shiftRequest("Day", "08:00", "17:00", false))
	late := env.create(t, shiftRequest("Late", "10:00", "19:00", false))

	first := env.assign(t, day.ID, "2025-03-01", nil)
	assert.Zero(t, first.ClosedPrevious)
	assert.Nil(t, first.EffectiveEndDate)

	second := env.assign(t, late.ID, "2025-03-10", nil)
	assert.Equal(t, int64(1), second.ClosedPrevious)
	require.NotNil(t, second.AssignedBy)
	assert.Equal(t, "admin-1", *second.AssignedBy)

	list, err := env.svc.ListAssignments(ctx, testPerson)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	require.NotNil(t, list[1].EffectiveEndDate)
	assert.Equal(t, "2025-03-09", *list[1].EffectiveEndDate)
}

func TestShiftService_AssignShift_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newShiftTestEnv()

	_, err := env.svc.AssignShift(ctx, shift.AssignShiftRequest{
		PersonID:           testPerson,
		ShiftID:            "0195b1c2-0000-7000-8000-00000000dead",
		EffectiveStartDate: "2025-03-10",
	})
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)

	inactive := shiftRequest("Old", "08:00", "17:00", false)
	off := false
	inactive.IsActive = &off
	old := env.create(t, inactive)
	_, err = env.svc.AssignShift(ctx, shift.AssignShiftRequest{
		PersonID:           testPerson,
		ShiftID:            old.ID,
		EffectiveStartDate: "2025-03-10",
	})
	requireFieldError(t, err, "shift_id")

	end := "2025-03-01"
	_, err = env.svc.AssignShift(ctx, shift.AssignShiftRequest{
		PersonID:           testPerson,
		ShiftID:            old.ID,
		EffectiveStartDate: "2025-03-10",
		EffectiveEndDate:   &end,
	})
	requireFieldError(t, err, "effective_end_date")
}

func TestShiftService_ListAssignments_RequiresPerson(t *testing.T) {
	env := newShiftTestEnv()

	_, err := env.svc.ListAssignments(context.Background(), " ")
	requireFieldError(t, err, "person_id")
}
