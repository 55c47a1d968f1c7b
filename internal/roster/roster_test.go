package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	dir := NewMemory(Course{
		ID: "c1", Name: "Databases", InstructorID: "fac1",
		Students: []string{"stuA", "stuB"},
	})
	ctx := context.Background()

	c, err := dir.Course(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "Databases", c.Name)

	missing, err := dir.Course(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	enrolled, err := dir.Enrolled(ctx, "c1", "stuA")
	require.NoError(t, err)
	require.True(t, enrolled)

	enrolled, err = dir.Enrolled(ctx, "c1", "ghost")
	require.NoError(t, err)
	require.False(t, enrolled)

	teaches, err := dir.Teaches(ctx, "c1", "fac1")
	require.NoError(t, err)
	require.True(t, teaches)

	teaches, err = dir.Teaches(ctx, "c1", "fac2")
	require.NoError(t, err)
	require.False(t, teaches)
}

func TestMemoryCourseCopyIsIsolated(t *testing.T) {
	dir := NewMemory(Course{ID: "c1", Students: []string{"stuA"}})
	ctx := context.Background()

	c, _ := dir.Course(ctx, "c1")
	c.Students[0] = "mutated"

	again, _ := dir.Course(ctx, "c1")
	require.Equal(t, "stuA", again.Students[0])
}
