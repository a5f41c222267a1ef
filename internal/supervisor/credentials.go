package supervisor

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// resolveCredential turns user/group names (or numeric ids) into the
// credential the child is started with. Both empty means no privilege drop.
func resolveCredential(userName, groupName string) (*syscall.Credential, error) {
	if userName == "" && groupName == "" {
		return nil, nil
	}

	cred := &syscall.Credential{
		Uid: uint32(syscall.Getuid()),
		Gid: uint32(syscall.Getgid()),
	}

	if userName != "" {
		u, err := lookupUser(userName)
		if err != nil {
			return nil, err
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid uid %q for user %s: %w", u.Uid, userName, err)
		}
		gid, err := strconv.ParseUint(u.Gid, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid gid %q for user %s: %w", u.Gid, userName, err)
		}
		cred.Uid = uint32(uid)
		cred.Gid = uint32(gid)
	}

	if groupName != "" {
		gid, err := lookupGroup(groupName)
		if err != nil {
			return nil, err
		}
		cred.Gid = gid
	}

	// Do not keep the supervisor's supplementary groups.
	cred.Groups = []uint32{}
	return cred, nil
}

func lookupUser(name string) (*user.User, error) {
	if _, err := strconv.Atoi(name); err == nil {
		if u, err := user.LookupId(name); err == nil {
			return u, nil
		}
		return &user.User{Uid: name, Gid: name, Username: name}, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", name, err)
	}
	return u, nil
}

func lookupGroup(name string) (uint32, error) {
	if id, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(id), nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up group %s: %w", name, err)
	}
	id, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid gid %q for group %s: %w", g.Gid, name, err)
	}
	return uint32(id), nil
}
