package mcpserver

const contractURI = "spendscope://import-format"

// ImportFormatContract describes the documents accepted by the import inbox.
const ImportFormatContract = `# spendscope Import Format

Import documents are JSON (` + "`.json`" + `) or YAML (` + "`.yaml`, `.yml`" + `) files.
A file replaces everything it imported before, so re-importing an edited
file never duplicates rows. Deleting the file removes its transactions.

## Transactions

` + "```" + `yaml
kind: transactions
transactions:
  - date: 2025-01-15        # REQUIRED - yyyy-mm-dd or dd/mm/yyyy
    category: Groceries     # used by the expense tree
    description: Weekly shop
    credit: 0               # OPTIONAL - decimal, defaults to 0
    debit: 84.20            # OPTIONAL - decimal, defaults to 0
` + "```" + `

A bare top-level list is read as a list of transactions.

## Employees

` + "```" + `yaml
kind: employees
employees:
  - id: "7"                 # REQUIRED - unique within the document
    name: Ada Lovelace
    department: Engineering
    manager_id: "3"         # OPTIONAL - id of the manager
` + "```" + `

Employees are upserted by id. An employee whose manager is unknown is shown
directly under their department.

## Rules

1. Dates must exist in the calendar (31/02/2025 is rejected).
2. Amounts are decimals; write them as numbers or quoted strings.
3. File names must not start with a dot and must not contain path separators.
`
