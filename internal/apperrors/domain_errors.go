package apperrors

var (
	ErrNotFound                = NotFound("not found")
	ErrUnauthorized            = New(CodeUnauthorized, "not allowed to act on this request")
	ErrForbidden               = Forbidden("not a participant")
	ErrAlreadyConnected        = New(CodeAlreadyConnected, "you are already connected with this crew member")
	ErrRequestAlreadyPending   = New(CodeRequestAlreadyPending, "a connection request between you is already pending")
	ErrSelfRequest             = New(CodeSelfRequest, "you cannot send a connection request to yourself")
	ErrNotConnected            = New(CodeNotConnected, "you can only message crew members you are connected with")
	ErrInvalidStatusTransition = New(CodeInvalidStatusTransition, "message status cannot move backwards")
	ErrChannelUnavailable      = New(CodeChannelUnavailable, "recipient has no active realtime session")

	ErrRequestNotFound      = NotFound("connection request not found or already answered")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotificationNotFound = NotFound("notification not found")
	ErrRoomForbidden        = Forbidden("you are not a participant of this chat room")
	ErrStatusForbidden      = Forbidden("only the recipient can update a message status")
)
