package naming

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/apierr"
	"github.com/lfcarvalho/distfs/internal/nstree"
	"github.com/lfcarvalho/distfs/internal/path"
	"github.com/lfcarvalho/distfs/internal/rpc"
)

var commandInterfaceType = reflect.TypeOf((*api.Command)(nil)).Elem()

// fakeCommandTarget records Create/Delete/Copy calls behind a real
// skeleton, so CommandStub.Invoke exercises the genuine wire path.
type fakeCommandTarget struct {
	created []string
	deleted []string
	copied  []string
}

func (f *fakeCommandTarget) Create(p path.Path) (bool, error) {
	f.created = append(f.created, p.String())
	return true, nil
}

func (f *fakeCommandTarget) Delete(p path.Path) (bool, error) {
	f.deleted = append(f.deleted, p.String())
	return true, nil
}

func (f *fakeCommandTarget) Copy(p path.Path, source api.StorageHandle) (bool, error) {
	f.copied = append(f.copied, p.String())
	return true, nil
}

func startCommandServer(t *testing.T, target api.Command) api.CommandHandle {
	t.Helper()
	sk, err := rpc.NewSkeleton(commandInterfaceType, target, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, sk.Start())
	t.Cleanup(func() { _ = sk.Stop() })
	return api.CommandHandle{Network: "tcp", Address: sk.Addr().String()}
}

func mustPath(t *testing.T, s string) path.Path {
	t.Helper()
	p, err := path.Parse(s)
	require.NoError(t, err)
	return p
}

func TestRegisterDeduplicatesAndPairsHandles(t *testing.T) {
	srv := NewServer(nil)
	cmd := startCommandServer(t, &fakeCommandTarget{})

	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	dups, err := srv.Register(s1, cmd, []path.Path{mustPath(t, "/a"), mustPath(t, "/b/c")})
	require.NoError(t, err)
	assert.Empty(t, dups)

	names, err := srv.List(path.Root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	s2 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9002"}
	dups, err = srv.Register(s2, cmd, []path.Path{mustPath(t, "/a"), mustPath(t, "/d")})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "/a", dups[0].String())

	handle, err := srv.GetStorage(mustPath(t, "/a"))
	require.NoError(t, err)
	assert.Equal(t, s1, handle)

	handle, err = srv.GetStorage(mustPath(t, "/d"))
	require.NoError(t, err)
	assert.Equal(t, s2, handle)
}

func TestRegisterTwiceForSameClientIsIllegalState(t *testing.T) {
	srv := NewServer(nil)
	cmd := startCommandServer(t, &fakeCommandTarget{})
	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	_, err := srv.Register(s1, cmd, nil)
	require.NoError(t, err)
	_, err = srv.Register(s1, cmd, nil)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.IllegalState))
}

func TestCreateFileRequiresRegisteredStorageServer(t *testing.T) {
	srv := NewServer(nil)
	_, err := srv.CreateFile(mustPath(t, "/a"))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.IllegalState))

	_, err = srv.IsDirectory(mustPath(t, "/a"))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound), "rolled-back insert should not leave a dangling node")
}

func TestCreateFileCallsCommandCreateAndRecordsReplica(t *testing.T) {
	srv := NewServer(nil)
	target := &fakeCommandTarget{}
	cmd := startCommandServer(t, target)
	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	_, err := srv.Register(s1, cmd, nil)
	require.NoError(t, err)

	created, err := srv.CreateFile(mustPath(t, "/a"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"/a"}, target.created)

	handle, err := srv.GetStorage(mustPath(t, "/a"))
	require.NoError(t, err)
	assert.Equal(t, s1, handle)

	created, err = srv.CreateFile(mustPath(t, "/a"))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDeleteFansOutToEveryReplicaHolder(t *testing.T) {
	srv := NewServer(nil)
	t1 := &fakeCommandTarget{}
	t2 := &fakeCommandTarget{}
	c1 := startCommandServer(t, t1)
	c2 := startCommandServer(t, t2)
	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	s2 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9002"}

	_, err := srv.Register(s1, c1, []path.Path{mustPath(t, "/a")})
	require.NoError(t, err)
	_, err = srv.Register(s2, c2, nil)
	require.NoError(t, err)

	// Simulate /a having replicated to s2 as well.
	srv.registry.setReplicas(mustPath(t, "/a"), []api.StorageHandle{s1, s2})

	ok, err := srv.Delete(mustPath(t, "/a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"/a"}, t1.deleted)
	assert.Equal(t, []string{"/a"}, t2.deleted)

	_, err = srv.IsDirectory(mustPath(t, "/a"))
	require.Error(t, err)
}

func TestGetStorageOnUnregisteredPathIsNotFound(t *testing.T) {
	srv := NewServer(nil)
	_, err := srv.GetStorage(mustPath(t, "/nope"))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestUnlockReplicationCandidateTriggersCopy(t *testing.T) {
	srv := NewServer(nil)
	t1 := &fakeCommandTarget{}
	t2 := &fakeCommandTarget{}
	c1 := startCommandServer(t, t1)
	c2 := startCommandServer(t, t2)
	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	s2 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9002"}
	_, err := srv.Register(s1, c1, []path.Path{mustPath(t, "/a")})
	require.NoError(t, err)
	_, err = srv.Register(s2, c2, nil)
	require.NoError(t, err)

	for i := 0; i < nstree.ReplicationThreshold; i++ {
		require.NoError(t, srv.Lock(mustPath(t, "/a"), false))
		require.NoError(t, srv.Unlock(mustPath(t, "/a"), false))
	}
	srv.Wait()

	assert.Equal(t, []string{"/a"}, t2.copied)
	handles := srv.registry.replicasOf(mustPath(t, "/a"))
	assert.Len(t, handles, 2)
}

func TestUnlockCollapseCandidateTriggersDelete(t *testing.T) {
	srv := NewServer(nil)
	t1 := &fakeCommandTarget{}
	t2 := &fakeCommandTarget{}
	c1 := startCommandServer(t, t1)
	c2 := startCommandServer(t, t2)
	s1 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9001"}
	s2 := api.StorageHandle{Network: "tcp", Address: "127.0.0.1:9002"}
	_, err := srv.Register(s1, c1, []path.Path{mustPath(t, "/a")})
	require.NoError(t, err)
	_, err = srv.Register(s2, c2, nil)
	require.NoError(t, err)
	srv.registry.setReplicas(mustPath(t, "/a"), []api.StorageHandle{s1, s2})

	require.NoError(t, srv.Lock(mustPath(t, "/a"), true))
	require.NoError(t, srv.Unlock(mustPath(t, "/a"), true))
	srv.Wait()

	handles := srv.registry.replicasOf(mustPath(t, "/a"))
	assert.Len(t, handles, 1)
	total := len(t1.deleted) + len(t2.deleted)
	assert.Equal(t, 1, total, "exactly one of the two replicas should have been deleted")
}
