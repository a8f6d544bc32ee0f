package dispatch

import "fmt"

const (
	textReplyHeader     = "📢 *Ответ технической поддержки:*"
	textReplyStale      = "ℹ️ Этот запрос уже закрыт: повторные ответы на него не пересылаются."
	textStaleSelection  = "Действие устарело или не поддерживается."
	textReplyButtonHint = "Используйте функцию 'Ответить' (Reply) на сообщение пользователя."
	textReplyHowTo      = "Чтобы ответить пользователю, используйте функцию 'Ответить' (Reply) прямо на сообщение пользователя в группе с логами. Бот автоматически перешлет ваш ответ."
)

func replyDelivered(uid int64) string {
	return fmt.Sprintf("✅ Ответ успешно отправлен пользователю `%d`.", uid)
}

func replyUnreachable(uid int64) string {
	return fmt.Sprintf("❌ Ошибка: Не удалось отправить ответ пользователю `%d`. Чат не найден (возможно, пользователь заблокировал бота).", uid)
}

func replyFailed(uid int64, reason string) string {
	return fmt.Sprintf("❌ Ошибка: Не удалось отправить ответ пользователю `%d`. Причина: %s", uid, reason)
}

func statsReport(s Stats) string {
	return fmt.Sprintf("📊 Статистика\nАктивные диалоги: %d\nОжидают ответа: %d\nФоновые задачи: %d выполнено, %d с ошибкой",
		s.Sessions, s.Routes, s.JobsDone, s.JobsFailed)
}
