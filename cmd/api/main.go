// @title           JournalRAG API
// @version         1.0
// @description     Semantic search, citation-checked answers and usage stats over research-paper chunks
// @termsOfService  http://swagger.io/terms/

// @contact.name    akolanti
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
