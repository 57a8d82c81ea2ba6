package store

// Persisted state layout. Every component reads and writes these paths;
// keeping the builders in one place keeps the layout authoritative.
const (
	AuthMappingPrefix = "auth_mapping"
	UsersPrefix       = "users"
	RoomsPrefix       = "rooms"
	InvitationsPrefix = "invitations"
	DemoCodesPrefix   = "demoRoomCodes"
)

// AuthMappingPath maps an already-encoded external subject id to an
// account id.
func AuthMappingPath(encodedExternalId string) string {
	return AuthMappingPrefix + "/" + encodedExternalId
}

func UserPath(accountId string) string {
	return UsersPrefix + "/" + accountId
}

func RoomAccessPrefix(accountId string) string {
	return UsersPrefix + "/" + accountId + "/roomAccess"
}

func RoomAccessPath(accountId, roomId string) string {
	return RoomAccessPrefix(accountId) + "/" + roomId
}

func RoomPath(roomId string) string {
	return RoomsPrefix + "/" + roomId
}

func RoomMembersPrefix(roomId string) string {
	return RoomsPrefix + "/" + roomId + "/users"
}

func RoomMemberPath(roomId, accountId string) string {
	return RoomMembersPrefix(roomId) + "/" + accountId
}

func InvitationPath(code string) string {
	return InvitationsPrefix + "/" + code
}

func DemoCodePath(roomId string) string {
	return DemoCodesPrefix + "/" + roomId
}
