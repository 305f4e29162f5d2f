// @title           JournalRAG API
// @version         1.0
// @description     Ingests research-document chunks, runs similarity search over them and synthesizes cited answers.

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package utils

//run redis
//docker run -p 6379:6379 -d redis

//run qdrant
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//or skip qdrant and keep vectors on disk
//VECTOR_BACKEND=chromem go run ./cmd/api serve

//postgres ledger instead of sqlite
//LEDGER_DRIVER=postgres LEDGER_DSN="host=localhost user=rag dbname=journal sslmode=disable" go run ./cmd/api serve

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
