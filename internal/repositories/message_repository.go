package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

var ErrMessageNotFound = apperr.NotFound("message not found")

// MessageRepository is the durable conversation store.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, readerID, partnerID, page, pageSize int) ([]models.Message, int, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	EditMessage(ctx context.Context, messageID int64, actorID int, body string) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID int64, actorID int) (models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64, actorID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID int64, actorID int) (models.Message, error)
	UnreadCount(ctx context.Context, fromID, toID int) (int, error)
	LastMessage(ctx context.Context, userA, userB int) (*models.Message, error)
	PartnerIDs(ctx context.Context, userID int) ([]int, error)
}

const selectMessage = `SELECT m.id, m.sender_id, m.receiver_id, m.body, m.kind, m.media_ref, m.reply_to_id,
        m.is_delivered, m.is_read, m.is_encrypted, m.is_edited, m.is_deleted, m.created_at,
        r.id AS r_id, r.body AS r_body, r.sender_id AS r_sender_id, r.kind AS r_kind
        FROM direct_messages m
        LEFT JOIN direct_messages r ON r.id = m.reply_to_id`

const betweenUsers = `((m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1))`

type messageRow struct {
	models.Message
	ReplyID       *int64  `db:"r_id"`
	ReplyBody     *string `db:"r_body"`
	ReplySenderID *int    `db:"r_sender_id"`
	ReplyKind     *string `db:"r_kind"`
}

func (row messageRow) toModel() models.Message {
	msg := row.Message
	if row.ReplyID != nil {
		summary := &models.ReplySummary{ID: *row.ReplyID, Body: row.ReplyBody}
		if row.ReplySenderID != nil {
			summary.SenderID = *row.ReplySenderID
		}
		if row.ReplyKind != nil {
			summary.Kind = models.MessageKind(*row.ReplyKind)
		}
		msg.ReplyTo = summary
	}
	return msg
}

// MessageRepo is a sqlx-backed MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage validates and stores a new message with both lifecycle flags unset.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	if err := msg.Validate(); err != nil {
		return models.Message{}, err
	}
	if msg.ReplyToID != nil {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM direct_messages WHERE id=$1)`, *msg.ReplyToID); err != nil {
			return models.Message{}, errors.Wrap(err, "check reply target")
		}
		if !exists {
			return models.Message{}, apperr.Validation("reply target does not exist")
		}
	}

	var id int64
	err := r.db.QueryRowxContext(ctx, `INSERT INTO direct_messages (sender_id, receiver_id, body, kind, media_ref, reply_to_id, is_encrypted)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		msg.SenderID, msg.ReceiverID, msg.Body, string(msg.Kind), msg.MediaRef, msg.ReplyToID, msg.IsEncrypted).Scan(&id)
	if err != nil {
		return models.Message{}, errors.Wrap(err, "insert message")
	}
	return r.GetMessage(ctx, id)
}

// ListMessages returns one page of the conversation in display order and marks
// the partner's unread messages to the reader as read.
func (r *MessageRepo) ListMessages(ctx context.Context, readerID, partnerID, page, pageSize int) ([]models.Message, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM direct_messages m WHERE `+betweenUsers, readerID, partnerID); err != nil {
		return nil, 0, errors.Wrap(err, "count messages")
	}

	var rows []messageRow
	query := selectMessage + ` WHERE ` + betweenUsers + ` ORDER BY m.created_at DESC, m.id DESC LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &rows, query, readerID, partnerID, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, errors.Wrap(err, "select messages")
	}

	msgs := make([]models.Message, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = row.toModel()
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET is_read = TRUE, is_delivered = TRUE
        WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE`, partnerID, readerID); err != nil {
		return nil, 0, errors.Wrap(err, "mark conversation read")
	}
	return msgs, total, nil
}

// GetMessage retrieves a single message with its reply summary.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, selectMessage+` WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, errors.Wrap(err, "get message")
	}
	return row.toModel(), nil
}

// EditMessage replaces the body of a text message owned by actorID.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int64, actorID int, body string) (models.Message, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if err := checkEditable(msg, actorID, body); err != nil {
		return models.Message{}, err
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET body=$1, is_edited = TRUE WHERE id=$2 AND sender_id=$3`, body, messageID, actorID); err != nil {
		return models.Message{}, errors.Wrap(err, "edit message")
	}
	msg.Body = &body
	msg.IsEdited = true
	return msg, nil
}

// SoftDeleteMessage overwrites the body with the tombstone; the row and its media reference stay.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int64, actorID int) (models.Message, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != actorID {
		return models.Message{}, apperr.Forbidden("only the sender can delete this message")
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET body=$1, is_deleted = TRUE WHERE id=$2 AND sender_id=$3`, models.DeletedBody, messageID, actorID); err != nil {
		return models.Message{}, errors.Wrap(err, "delete message")
	}
	tombstone := models.DeletedBody
	msg.Body = &tombstone
	msg.IsDeleted = true
	return msg, nil
}

// MarkDelivered records the receiver's delivery acknowledgement.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64, actorID int) (models.Message, error) {
	msg, err := r.receiverMessage(ctx, messageID, actorID)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET is_delivered = TRUE WHERE id=$1`, messageID); err != nil {
		return models.Message{}, errors.Wrap(err, "mark delivered")
	}
	msg.IsDelivered = true
	return msg, nil
}

// MarkRead records the receiver's read acknowledgement; read implies delivered.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int64, actorID int) (models.Message, error) {
	msg, err := r.receiverMessage(ctx, messageID, actorID)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET is_read = TRUE, is_delivered = TRUE WHERE id=$1`, messageID); err != nil {
		return models.Message{}, errors.Wrap(err, "mark read")
	}
	msg.IsDelivered = true
	msg.IsRead = true
	return msg, nil
}

func (r *MessageRepo) receiverMessage(ctx context.Context, messageID int64, actorID int) (models.Message, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ReceiverID != actorID {
		return models.Message{}, apperr.Forbidden("only the receiver can acknowledge this message")
	}
	return msg, nil
}

// UnreadCount counts unread messages sent by fromID to toID.
func (r *MessageRepo) UnreadCount(ctx context.Context, fromID, toID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM direct_messages WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE`, fromID, toID)
	return count, errors.Wrap(err, "count unread")
}

// LastMessage returns the newest message between two users, or nil.
func (r *MessageRepo) LastMessage(ctx context.Context, userA, userB int) (*models.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, selectMessage+` WHERE `+betweenUsers+` ORDER BY m.created_at DESC, m.id DESC LIMIT 1`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "last message")
	}
	msg := row.toModel()
	return &msg, nil
}

// PartnerIDs lists every user that exchanged at least one message with userID.
func (r *MessageRepo) PartnerIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END AS partner_id
        FROM direct_messages WHERE sender_id=$1 OR receiver_id=$1`, userID)
	return ids, errors.Wrap(err, "list partners")
}

func checkEditable(msg models.Message, actorID int, body string) error {
	if msg.SenderID != actorID {
		return apperr.Forbidden("only the sender can edit this message")
	}
	if !msg.Kind.Editable() {
		return apperr.InvalidState("only text messages can be edited")
	}
	if msg.IsDeleted {
		return apperr.InvalidState("deleted messages cannot be edited")
	}
	if strings.TrimSpace(body) == "" {
		return apperr.Validation("message is required")
	}
	return nil
}
