package dialogue

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/m3rciful/relaybot/core/telegram/format"
	"github.com/m3rciful/relaybot/internal/messaging"
)

// User-facing copy.
const (
	TextWelcome        = "Добро пожаловать! Выберите нужный раздел:"
	TextCancelled      = "Действие отменено. Вы вернулись в главное меню."
	TextCancelledToast = "Отменено."

	textOrderPrompt   = "Отлично! Что бы вы хотели приобрести?"
	textOrderReprompt = "Пожалуйста, опишите ваш заказ текстом."
	textOrderAccepted = "Спасибо за ваш заказ! Мы скоро свяжемся с вами для уточнения деталей."

	textSupportPrompt   = "Напишите ваше сообщение для оператора, или отправьте фото/документ. Как только вы его отправите, мы передадим его в техподдержку."
	textSupportAccepted = "Ваш запрос принят. Ожидайте ответа оператора."
	textSupportFailed   = "Произошла ошибка при регистрации вашего запроса. Попробуйте позже."

	textReviewTypePrompt  = "Выберите, пожалуйста, тип отзыва:"
	textReviewPositiveAsk = "Спасибо! Напишите, что вам больше всего понравилось в нашей работе."
	textReviewNegativeAsk = "Нам очень жаль! Пожалуйста, опишите, что пошло не так, чтобы мы могли исправиться."
	textReviewReprompt    = "Пожалуйста, напишите ваш отзыв текстом."
	textReviewPositiveOK  = "Ваш положительный отзыв успешно принят! Спасибо за вашу обратную связь."
	textReviewNegativeOK  = "Ваш отрицательный отзыв принят. Мы обязательно изучим вашу проблему и свяжемся с вами, если потребуется уточнение."

	titleSupport        = "❓ *НОВЫЙ ЗАПРОС В ТЕХПОДДЕРЖКУ*"
	titleReviewPositive = "⭐ *✅ ПОЛОЖИТЕЛЬНЫЙ ОТЗЫВ*"
	titleReviewNegative = "⭐ *❌ ОТРИЦАТЕЛЬНЫЙ ОТЗЫВ*"
)

// Polarity of a review.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Scratch keys.
const (
	ScratchPolarity        = "review_polarity"
	ScratchPromptMessageID = "prompt_message_id"
)

// senderLine renders "От: Name (@handle)\nID: `123`" in legacy Markdown.
func senderLine(s messaging.Sender) string {
	handle := s.Username
	if handle == "" {
		handle = "нет"
	}
	return fmt.Sprintf("От: %s (@%s)\nID: `%d`", format.Markdown(s.DisplayName()), format.Markdown(handle), s.ID)
}

// SupportHeader is the operator-channel header of a support request.
func SupportHeader(s messaging.Sender) string {
	return titleSupport + "\n" + senderLine(s) + "\n"
}

// SupportPost is the single-message relay of a text support request.
func SupportPost(s messaging.Sender, text string) string {
	return SupportHeader(s) + "\nТекст:\n" + format.Markdown(text)
}

// ReviewHeader is the operator-channel header of a review.
func ReviewHeader(s messaging.Sender, polarity string) string {
	title := titleReviewNegative
	if polarity == PolarityPositive {
		title = titleReviewPositive
	}
	return title + "\n" + senderLine(s) + "\n"
}

// ReviewPost is the single-message relay of a review.
func ReviewPost(s messaging.Sender, polarity, text string) string {
	var b strings.Builder
	b.WriteString(ReviewHeader(s, polarity))
	b.WriteString("\nТекст отзыва:\n")
	b.WriteString(format.Markdown(text))
	return b.String()
}

// maxMessageLen is Telegram's text message limit in UTF-16 code units.
const maxMessageLen = 4096

// fitsMessage reports whether s can go out as one text message. Markup is
// counted too, so the check is conservative.
func fitsMessage(s string) bool {
	n := 0
	for _, r := range s {
		if l := len(utf16.Encode([]rune{r})); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n <= maxMessageLen
}

func reviewAsk(polarity string) string {
	if polarity == PolarityPositive {
		return textReviewPositiveAsk
	}
	return textReviewNegativeAsk
}

func reviewAccepted(polarity string) string {
	if polarity == PolarityPositive {
		return textReviewPositiveOK
	}
	return textReviewNegativeOK
}
