package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Notes   Field[string] `json:"notes"`
	ShiftID Field[string] `json:"shift_id"`
	Minutes Field[int]    `json:"minutes"`
}

func TestUnmarshalDistinguishesAbsentAndNull(t *testing.T) {
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"notes": null, "minutes": 15}`), &p))

	assert.True(t, p.Notes.Set)
	assert.Nil(t, p.Notes.Value)

	assert.False(t, p.ShiftID.Set)

	require.True(t, p.Minutes.Set)
	assert.Equal(t, 15, *p.Minutes.Value)
}

func TestUnmarshalTypeMismatch(t *testing.T) {
	var p payload
	assert.Error(t, json.Unmarshal([]byte(`{"minutes": "x"}`), &p))
}

func TestConstructorsAndMarshal(t *testing.T) {
	b, err := json.Marshal(payload{Notes: Of("late train"), ShiftID: Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"notes":"late train","shift_id":null,"minutes":null}`, string(b))
}
