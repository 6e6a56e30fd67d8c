package bot

import "strings"

const (
	seeMorePadding = 500
	zeroWidthSpace = "\u200b"

	// 이 줄 수를 넘는 목록만 접는다
	foldAfterLines = 6
)

// foldLong keeps head visible and hides body behind KakaoTalk's "전체보기" when body is long.
func foldLong(head, body string) string {
	head = strings.TrimSpace(head)
	if strings.TrimSpace(body) == "" {
		return head
	}
	if strings.Count(body, "\n")+1 <= foldAfterLines {
		if head == "" {
			return body
		}
		return head + "\n" + body
	}
	var b strings.Builder
	b.Grow(len(head) + len(body) + seeMorePadding*len(zeroWidthSpace) + 1)
	b.WriteString(head)
	b.WriteString(strings.Repeat(zeroWidthSpace, seeMorePadding))
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}
