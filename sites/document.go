package sites

import (
	"fmt"
	"html"
	"strings"
)

const (
	closingSequence = "\n</body>\n</html>"

	errorFragment = "<h1>Error Generating Page</h1>" +
		"<p>Sorry, an error occurred while trying to create this page.</p>"

	busyMessage = "Server is busy generating another page, please try again shortly."
)

func documentHead(stylesheetPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<script src="%s"></script>
<title>Infinite Pages</title>
</head>
<body class="bg-gray-100 text-gray-800 font-sans">
`, html.EscapeString(stylesheetPath))
}

const promptPreamble = `You are an expert web developer writing one page of a website whose pages are created on demand. Every link you write leads to another page that will be written the same way, so the site has no end.

Rules:
- Start directly with the content of <body>. Do not write <!DOCTYPE>, <html>, <head> or <body> tags; they are already sent.
- Style with Tailwind CSS utility classes. The Tailwind runtime is loaded from %q.
- Use semantic elements such as <header>, <nav>, <main>, <section>, <article> and <footer>. Put the page content inside a single <main> element.
- Link generously to other plausible pages of the same site with root-relative paths like /about or /blog/some-topic.
- For pictures use root-relative paths ending in .jpg or .png, with optional w and h query parameters, for example /images/harbor-at-dawn.jpg?w=1200&h=800.
- Write raw HTML only. No markdown fences, no commentary outside HTML comments.
- Stop when the page is complete. The closing </body> and </html> tags are appended for you.

Before the page content you may sketch the layout in a short HTML comment.

Write the page for this URL: `

func buildPrompt(stylesheetPath string, fullPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptPreamble, stylesheetPath)
	b.WriteString(fullPath)
	return b.String()
}
